package soap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	nsEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	nsEncoding = "http://schemas.xmlsoap.org/soap/encoding/"
	nsXSD      = "http://www.w3.org/2001/XMLSchema"
	nsXSI      = "http://www.w3.org/2001/XMLSchema-instance"
	nsApache   = "http://xml.apache.org/xml-soap"
)

// Param is one key/value entry of an encoded map.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered map. It is encoded as an apachesoap:Map, which is how
// the panel API expects its associative "auth" and "data" arguments.
type Params []Param

// Get returns the value stored under key.
func (p Params) Get(key string) (any, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// arg is a named part of an RPC call.
type arg struct {
	name  string
	value any
}

// newEnvelope builds an RPC/encoded SOAP 1.1 request for method.
func newEnvelope(namespace, method string, args ...arg) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("SOAP-ENV:Envelope")
	env.CreateAttr("xmlns:SOAP-ENV", nsEnvelope)
	env.CreateAttr("xmlns:SOAP-ENC", nsEncoding)
	env.CreateAttr("xmlns:xsd", nsXSD)
	env.CreateAttr("xmlns:xsi", nsXSI)
	env.CreateAttr("xmlns:apachesoap", nsApache)

	body := env.CreateElement("SOAP-ENV:Body")
	call := body.CreateElement("ns1:" + method)
	call.CreateAttr("xmlns:ns1", namespace)
	call.CreateAttr("SOAP-ENV:encodingStyle", nsEncoding)

	for _, a := range args {
		encodeValue(call.CreateElement(a.name), a.value)
	}
	return doc
}

// encodeValue writes v as an xsi-typed element. The panel API only takes
// strings, integers and maps; anything else is sent as its string form.
func encodeValue(el *etree.Element, v any) {
	switch val := v.(type) {
	case string:
		el.CreateAttr("xsi:type", "xsd:string")
		el.SetText(val)
	case int:
		el.CreateAttr("xsi:type", "xsd:int")
		el.SetText(strconv.Itoa(val))
	case Params:
		el.CreateAttr("xsi:type", "apachesoap:Map")
		for _, kv := range val {
			item := el.CreateElement("item")
			encodeValue(item.CreateElement("key"), kv.Key)
			encodeValue(item.CreateElement("value"), kv.Value)
		}
	default:
		el.CreateAttr("xsi:type", "xsd:string")
		el.SetText(fmt.Sprint(val))
	}
}

// decodeValue turns an encoded response element into plain Go values:
// maps become map[string]any, arrays []any, integers int64, booleans bool.
func decodeValue(el *etree.Element) any {
	if isNil(el) {
		return nil
	}

	typ := localName(el.SelectAttrValue("type", ""))
	children := el.ChildElements()

	switch {
	case typ == "Map" || isMap(children):
		m := make(map[string]any, len(children))
		for _, item := range children {
			key := item.SelectElement("key")
			if key == nil {
				continue
			}
			var v any
			if value := item.SelectElement("value"); value != nil {
				v = decodeValue(value)
			}
			m[strings.TrimSpace(key.Text())] = v
		}
		return m
	case typ == "Array" || el.SelectAttr("arrayType") != nil:
		list := make([]any, 0, len(children))
		for _, c := range children {
			list = append(list, decodeValue(c))
		}
		return list
	case len(children) > 0:
		m := make(map[string]any, len(children))
		for _, c := range children {
			m[c.Tag] = decodeValue(c)
		}
		return m
	}

	text := strings.TrimSpace(el.Text())
	switch typ {
	case "int", "integer", "long", "short", "byte", "unsignedInt":
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n
		}
	case "boolean":
		if b, err := strconv.ParseBool(text); err == nil {
			return b
		}
	case "double", "float", "decimal":
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	}
	return el.Text()
}

func isNil(el *etree.Element) bool {
	v := el.SelectAttrValue("nil", "")
	return v == "true" || v == "1"
}

func isMap(children []*etree.Element) bool {
	if len(children) == 0 {
		return false
	}
	for _, c := range children {
		if c.Tag != "item" || c.SelectElement("key") == nil {
			return false
		}
	}
	return true
}

func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
