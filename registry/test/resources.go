// Package test provides resource bodies and helpers shared by the registry tests.
package test

import (
	"fmt"

	"github.com/tidwall/sjson"
)

const Version = "v1.3"

func NodeBody(id, label string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"version":"1700000000:0","label":%q,"description":"","tags":{},`+
		`"href":"http://192.0.2.1:80/","hostname":"node.example","caps":{},"services":[],"api":{"versions":["v1.3"],"endpoints":[]},`+
		`"clocks":[],"interfaces":[]}`, id, label))
}

func DeviceBody(id, nodeID, label string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"version":"1700000000:0","label":%q,"description":"","tags":{},`+
		`"type":"urn:x-nmos:device:generic","node_id":%q,"senders":[],"receivers":[],"controls":[]}`, id, label, nodeID))
}

func SourceBody(id, deviceID, label string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"version":"1700000000:0","label":%q,"description":"","tags":{},`+
		`"device_id":%q,"format":"urn:x-nmos:format:video","caps":{},"parents":[],"clock_name":null}`, id, label, deviceID))
}

func FlowBody(id, sourceID, deviceID, label string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"version":"1700000000:0","label":%q,"description":"","tags":{},`+
		`"source_id":%q,"device_id":%q,"format":"urn:x-nmos:format:video","parents":[]}`, id, label, sourceID, deviceID))
}

func SenderBody(id, deviceID, label string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"version":"1700000000:0","label":%q,"description":"","tags":{"location":["studio 1","studio 2"]},`+
		`"device_id":%q,"flow_id":null,"transport":"urn:x-nmos:transport:rtp","manifest_href":"http://192.0.2.1/sdp","interface_bindings":[]}`, id, label, deviceID))
}

func ReceiverBody(id, deviceID, label string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"version":"1700000000:0","label":%q,"description":"","tags":{},`+
		`"device_id":%q,"format":"urn:x-nmos:format:video","transport":"urn:x-nmos:transport:rtp",`+
		`"caps":{"media_types":["video/raw"]},"subscription":{"sender_id":null,"active":false},"interface_bindings":[]}`, id, label, deviceID))
}

// WithLabel returns a copy of body with a new label.
func WithLabel(body []byte, label string) []byte {
	out, err := sjson.SetBytes(append([]byte(nil), body...), "label", label)
	if err != nil {
		panic(err)
	}
	return out
}
