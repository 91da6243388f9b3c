package curtainkit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hubertat/curtainkit/drivers"
	"github.com/hubertat/curtainkit/drivers/switchbot"
)

var hkPinPattern = regexp.MustCompile(`^\d{8}$`)

// LoadConfig reads a json config file, or yaml when the extension is .yaml/.yml,
// applies defaults and validates the result.
func LoadConfig(path string) (*CurtainKit, error) {
	buff, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading config file %s", path)
	}

	ck := &CurtainKit{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buff, ck)
	default:
		err = json.Unmarshal(buff, ck)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed unmarshalling config %s", path)
	}

	ck.ApplyDefaults()
	err = ck.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return ck, nil
}

func (ck *CurtainKit) ApplyDefaults() {
	if len(ck.Name) == 0 {
		ck.Name = homeKitBridgeName
	}
	if ck.Mqtt != nil && len(ck.Mqtt.TopicPrefix) == 0 {
		ck.Mqtt.TopicPrefix = defaultMqttTopicPrefix
	}
	if ck.Curtain == nil {
		return
	}

	ck.Curtain.applyDefaults()
	switch ck.Curtain.DriverName {
	case (&drivers.SwitchBotBLE{}).String():
		if ck.SwitchBot == nil {
			ck.SwitchBot = &drivers.SwitchBotBLE{}
		}
	case (&drivers.MockCurtainDriver{}).String():
		if ck.FakeDriver == nil {
			ck.FakeDriver = &drivers.MockCurtainDriver{}
		}
	}
}

func (ck *CurtainKit) Validate() error {
	if ck.Curtain == nil {
		return errors.New("curtain section is missing")
	}

	err := ck.Curtain.Validate()
	if err != nil {
		return err
	}

	if len(ck.LogLevel) > 0 {
		if _, err = log.ParseLevel(ck.LogLevel); err != nil {
			return errors.Wrap(err, "invalid log_level")
		}
	}

	if len(ck.HkPin) > 0 && !hkPinPattern.MatchString(ck.HkPin) {
		return errors.New("hk_pin must be 8 digits")
	}

	if ck.SwitchBot != nil {
		if _, ok := switchbot.ParseMode(ck.SwitchBot.Mode); !ok {
			return errors.Errorf("unknown switchbot mode %q", ck.SwitchBot.Mode)
		}
	}

	if ck.Mqtt != nil && len(ck.Mqtt.Broker) == 0 {
		return errors.New("mqtt broker is required when mqtt section is present")
	}

	if ck.Http != nil && len(ck.Http.Token) == 0 {
		return errors.New("http token is required when http section is present")
	}

	if ck.Influx != nil && (len(ck.Influx.Host) == 0 || len(ck.Influx.Bucket) == 0) {
		return errors.New("influx host and bucket are required when influx section is present")
	}

	return nil
}
