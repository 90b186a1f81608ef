package server

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	soapEncodingNS = "http://schemas.xmlsoap.org/soap/encoding/"
	upnpControlNS  = "urn:schemas-upnp-org:control-1-0"
)

// soapRequest is a decoded control request.
type soapRequest struct {
	Action string
	Args   map[string]string
}

// Arg returns the argument called name, or "" when absent.
func (r *soapRequest) Arg(name string) string {
	return r.Args[name]
}

// UintArg parses a ui4 argument. Absent or empty arguments yield -1.
func (r *soapRequest) UintArg(name string) (int, error) {
	v, ok := r.Args[name]
	if !ok || strings.TrimSpace(v) == "" {
		return -1, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("argument %s: %w", name, err)
	}
	return int(n), nil
}

type soapElement struct {
	name     string
	text     strings.Builder
	hasChild bool
}

// parseSOAPRequest reads an envelope and collects the leaf elements below the
// action element by local name. The first occurrence of a name wins.
func parseSOAPRequest(r io.Reader) (*soapRequest, error) {
	dec := xml.NewDecoder(r)
	req := &soapRequest{Args: make(map[string]string)}

	var (
		inBody bool
		stack  []*soapElement
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode soap envelope: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				if t.Name.Local == "Body" {
					inBody = true
				}
				continue
			}
			if req.Action == "" && len(stack) == 0 {
				req.Action = t.Name.Local
			}
			if len(stack) > 0 {
				stack[len(stack)-1].hasChild = true
			}
			stack = append(stack, &soapElement{name: t.Name.Local})

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				if t.Name.Local == "Body" {
					inBody = false
				}
				continue
			}
			el := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			// The action element itself is not an argument.
			if len(stack) == 0 || el.hasChild {
				continue
			}
			if _, dup := req.Args[el.name]; !dup {
				req.Args[el.name] = el.text.String()
			}
		}
	}

	if req.Action == "" {
		return nil, fmt.Errorf("soap body carries no action")
	}
	return req, nil
}

// actionFromHeader extracts the action name from a SOAPACTION header value
// such as "urn:schemas-upnp-org:service:ContentDirectory:1#Browse".
func actionFromHeader(header string) string {
	header = strings.Trim(strings.TrimSpace(header), `"`)
	if i := strings.LastIndex(header, "#"); i >= 0 {
		return header[i+1:]
	}
	return ""
}

// soapArg is one output argument of a response. CDATA arguments are written
// inside a CDATA section instead of being escaped.
type soapArg struct {
	Name  string
	Value string
	CDATA bool
}

func writeEnvelopeStart(b *strings.Builder) {
	b.WriteString(xml.Header)
	b.WriteString(`<s:Envelope xmlns:s="` + soapEnvelopeNS + `" s:encodingStyle="` + soapEncodingNS + `">`)
	b.WriteString("<s:Body>")
}

func writeEnvelopeEnd(b *strings.Builder) {
	b.WriteString("</s:Body></s:Envelope>")
}

// encodeSOAPResponse renders the <action>Response element for serviceType.
func encodeSOAPResponse(serviceType, action string, args []soapArg) string {
	var b strings.Builder
	writeEnvelopeStart(&b)
	fmt.Fprintf(&b, `<u:%sResponse xmlns:u="%s">`, action, serviceType)
	for _, a := range args {
		b.WriteString("<" + a.Name + ">")
		if a.CDATA {
			writeCDATA(&b, a.Value)
		} else {
			xml.EscapeText(&b, []byte(a.Value))
		}
		b.WriteString("</" + a.Name + ">")
	}
	fmt.Fprintf(&b, "</u:%sResponse>", action)
	writeEnvelopeEnd(&b)
	return b.String()
}

// writeCDATA wraps s in a single CDATA section, verbatim.
func writeCDATA(b *strings.Builder, s string) {
	b.WriteString("<![CDATA[")
	b.WriteString(s)
	b.WriteString("]]>")
}

// encodeSOAPFault renders a UPnP error fault.
func encodeSOAPFault(code int, description string) string {
	var b strings.Builder
	writeEnvelopeStart(&b)
	b.WriteString("<s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring><detail>")
	b.WriteString(`<UPnPError xmlns="` + upnpControlNS + `">`)
	fmt.Fprintf(&b, "<errorCode>%d</errorCode><errorDescription>", code)
	xml.EscapeText(&b, []byte(description))
	b.WriteString("</errorDescription></UPnPError></detail></s:Fault>")
	writeEnvelopeEnd(&b)
	return b.String()
}
