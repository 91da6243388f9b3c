package drivers

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"

	"github.com/hubertat/curtainkit/curtain"
)

const defaultHistoryMeasurement = "curtain"
const influxWriteTimeout = 5 * time.Second

// pointWriter is the part of api.WriteAPIBlocking used for history.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxHistory writes one point per curtain state transition.
type InfluxHistory struct {
	Host         string `json:"host" yaml:"host"`
	Organization string `json:"organization" yaml:"organization"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	Measurement  string `json:"measurement" yaml:"measurement"`
	Token        string `json:"token" yaml:"token"`

	client   influxdb2.Client
	writeApi pointWriter
	logger   *log.Logger
	ready    bool
}

func (ih *InfluxHistory) Setup(ctx context.Context) error {
	if len(ih.Host) == 0 || len(ih.Bucket) == 0 {
		return errors.New("influx host and bucket are required")
	}
	if len(ih.Measurement) == 0 {
		ih.Measurement = defaultHistoryMeasurement
	}

	ih.logger = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "InfluxHistory",
		Level:  log.GetLevel(),
	})

	ih.client = influxdb2.NewClient(ih.Host, ih.Token)
	ok, err := ih.client.Ready(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to init InfluxHistory")
	}
	if !ok {
		return errors.Errorf("influx at %s is not reachable", ih.Host)
	}

	ih.writeApi = ih.client.WriteAPIBlocking(ih.Organization, ih.Bucket)
	ih.ready = true
	return nil
}

func (ih *InfluxHistory) IsReady() bool {
	return ih.ready
}

func (ih *InfluxHistory) Close() error {
	ih.ready = false
	if ih.client != nil {
		ih.client.Close()
	}
	return nil
}

// Record is meant to be passed to curtain.Controller.SubscribeAsync, the write blocks.
func (ih *InfluxHistory) Record(snap curtain.Snapshot) {
	if !ih.ready {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), influxWriteTimeout)
	defer cancel()

	point := influxdb2.NewPoint(ih.Measurement, historyTags(snap), historyFields(snap), time.Now())
	err := ih.writeApi.WritePoint(ctx, point)
	if err != nil {
		ih.logger.Error("failed to write history point", "curtain", snap.Id, "err", err)
	}
}

func historyTags(snap curtain.Snapshot) map[string]string {
	return map[string]string{
		"id": snap.Id,
	}
}

func historyFields(snap curtain.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"position": snap.Position,
		"state":    snap.Motion.String(),
		"moving":   snap.Motion != curtain.Stopped,
	}
}
