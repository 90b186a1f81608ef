package server

import (
	"encoding/xml"

	"github.com/mantonx/upnpcds/internal/cds"
	"github.com/mantonx/upnpcds/internal/utils"
)

const (
	deviceNS          = "urn:schemas-upnp-org:device-1-0"
	serviceNS         = "urn:schemas-upnp-org:service-1-0"
	mediaServerType   = "urn:schemas-upnp-org:device:MediaServer:1"
	scpdPath          = "/cds.xml"
	controlPath       = "/cds/control"
	eventSubPath      = "/cds/events"
	descriptionPath   = "/description.xml"
	manufacturerName  = "upnpcds"
	modelDescription  = "UPnP ContentDirectory server"
	specVersionMajor  = 1
	specVersionMinor  = 0
	stateVarSendEvent = "yes"
)

type specVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type deviceService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

type deviceDescription struct {
	XMLName     xml.Name    `xml:"root"`
	Xmlns       string      `xml:"xmlns,attr"`
	SpecVersion specVersion `xml:"specVersion"`
	Device      struct {
		DeviceType       string          `xml:"deviceType"`
		FriendlyName     string          `xml:"friendlyName"`
		Manufacturer     string          `xml:"manufacturer"`
		ModelDescription string          `xml:"modelDescription"`
		ModelName        string          `xml:"modelName"`
		UDN              string          `xml:"UDN"`
		Services         []deviceService `xml:"serviceList>service"`
	} `xml:"device"`
}

// buildDeviceDescription renders the MediaServer:1 root device document.
func buildDeviceDescription(friendlyName, deviceID string) ([]byte, error) {
	d := deviceDescription{
		Xmlns:       deviceNS,
		SpecVersion: specVersion{Major: specVersionMajor, Minor: specVersionMinor},
	}
	d.Device.DeviceType = mediaServerType
	d.Device.FriendlyName = friendlyName
	d.Device.Manufacturer = manufacturerName
	d.Device.ModelDescription = modelDescription
	d.Device.ModelName = manufacturerName
	d.Device.UDN = utils.DeviceUDN(deviceID)
	d.Device.Services = []deviceService{{
		ServiceType: cds.ServiceType,
		ServiceID:   cds.ServiceID,
		SCPDURL:     scpdPath,
		ControlURL:  controlPath,
		EventSubURL: eventSubPath,
	}}
	return marshalDocument(d)
}

// argument directions
const (
	dirIn  = "in"
	dirOut = "out"
)

type actionArgument struct {
	Name          string `xml:"name"`
	Direction     string `xml:"direction"`
	StateVariable string `xml:"relatedStateVariable"`
}

type action struct {
	Name      string           `xml:"name"`
	Arguments []actionArgument `xml:"argumentList>argument"`
}

type stateVariable struct {
	SendEvents    string   `xml:"sendEvents,attr"`
	Name          string   `xml:"name"`
	DataType      string   `xml:"dataType"`
	AllowedValues []string `xml:"allowedValueList>allowedValue,omitempty"`
}

type scpd struct {
	XMLName     xml.Name        `xml:"scpd"`
	Xmlns       string          `xml:"xmlns,attr"`
	SpecVersion specVersion     `xml:"specVersion"`
	Actions     []action        `xml:"actionList>action"`
	StateTable  []stateVariable `xml:"serviceStateTable>stateVariable"`
}

func in(name, variable string) actionArgument {
	return actionArgument{Name: name, Direction: dirIn, StateVariable: variable}
}

func out(name, variable string) actionArgument {
	return actionArgument{Name: name, Direction: dirOut, StateVariable: variable}
}

// contentDirectoryActions is the action table served in the SCPD and
// dispatched by the control endpoint.
var contentDirectoryActions = []action{
	{Name: "GetSearchCapabilities", Arguments: []actionArgument{
		out("SearchCaps", "SearchCapabilities"),
	}},
	{Name: "GetSortCapabilities", Arguments: []actionArgument{
		out("SortCaps", "SortCapabilities"),
	}},
	{Name: "GetSystemUpdateID", Arguments: []actionArgument{
		out("Id", "SystemUpdateID"),
	}},
	{Name: "Browse", Arguments: []actionArgument{
		in("ObjectID", "A_ARG_TYPE_ObjectID"),
		in("BrowseFlag", "A_ARG_TYPE_BrowseFlag"),
		in("Filter", "A_ARG_TYPE_Filter"),
		in("StartingIndex", "A_ARG_TYPE_Index"),
		in("RequestedCount", "A_ARG_TYPE_Count"),
		in("SortCriteria", "A_ARG_TYPE_SortCriteria"),
		out("Result", "A_ARG_TYPE_Result"),
		out("NumberReturned", "A_ARG_TYPE_Count"),
		out("TotalMatches", "A_ARG_TYPE_Count"),
		out("UpdateID", "A_ARG_TYPE_UpdateID"),
	}},
	{Name: "Search", Arguments: []actionArgument{
		in("ContainerID", "A_ARG_TYPE_ObjectID"),
		in("SearchCriteria", "A_ARG_TYPE_SearchCriteria"),
		in("Filter", "A_ARG_TYPE_Filter"),
		in("StartingIndex", "A_ARG_TYPE_Index"),
		in("RequestedCount", "A_ARG_TYPE_Count"),
		in("SortCriteria", "A_ARG_TYPE_SortCriteria"),
		out("Result", "A_ARG_TYPE_Result"),
		out("NumberReturned", "A_ARG_TYPE_Count"),
		out("TotalMatches", "A_ARG_TYPE_Count"),
		out("UpdateID", "A_ARG_TYPE_UpdateID"),
	}},
}

var contentDirectoryStateTable = []stateVariable{
	{SendEvents: "no", Name: "SearchCapabilities", DataType: "string"},
	{SendEvents: "no", Name: "SortCapabilities", DataType: "string"},
	{SendEvents: stateVarSendEvent, Name: "SystemUpdateID", DataType: "ui4"},
	{SendEvents: "no", Name: "A_ARG_TYPE_ObjectID", DataType: "string"},
	{SendEvents: "no", Name: "A_ARG_TYPE_Result", DataType: "string"},
	{SendEvents: "no", Name: "A_ARG_TYPE_SearchCriteria", DataType: "string"},
	{SendEvents: "no", Name: "A_ARG_TYPE_BrowseFlag", DataType: "string",
		AllowedValues: []string{cds.BrowseMetadata, cds.BrowseDirectChildren}},
	{SendEvents: "no", Name: "A_ARG_TYPE_Filter", DataType: "string"},
	{SendEvents: "no", Name: "A_ARG_TYPE_SortCriteria", DataType: "string"},
	{SendEvents: "no", Name: "A_ARG_TYPE_Index", DataType: "ui4"},
	{SendEvents: "no", Name: "A_ARG_TYPE_Count", DataType: "ui4"},
	{SendEvents: "no", Name: "A_ARG_TYPE_UpdateID", DataType: "ui4"},
}

// buildSCPD renders the ContentDirectory service description.
func buildSCPD() ([]byte, error) {
	return marshalDocument(scpd{
		Xmlns:       serviceNS,
		SpecVersion: specVersion{Major: specVersionMajor, Minor: specVersionMinor},
		Actions:     contentDirectoryActions,
		StateTable:  contentDirectoryStateTable,
	})
}

// knownAction reports whether name is in the action table.
func knownAction(name string) bool {
	for _, a := range contentDirectoryActions {
		if a.Name == name {
			return true
		}
	}
	return false
}

func marshalDocument(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", " ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
