package main

import (
	"flag"
	"os"
	"reflect"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/psoc-arm/pkg/l1/comm/mqtt"
	"github.com/robotalks/psoc-arm/pkg/l1/msgs"

	_ "github.com/robotalks/psoc-arm/pkg/psocarm/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/robo/"
)

func init() {
	if val := os.Getenv("ROBO_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	flag.Set("logtostderr", "true")

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/meta") {
			glog.Infof("%s: %s", topic, string(payload))
			return
		}
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			glog.Warningf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			glog.Warningf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		glog.Infof("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
			msg.(msgs.SerializableMessage).Serializable().String())
	}))
	if err := q.ConnectWait(mqtt.DefaultConnectTimeout); err != nil {
		glog.Exit(err)
	}
	<-(chan struct{})(nil)
}
