package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/upnpcds/internal/catalog"
	"github.com/mantonx/upnpcds/internal/cds"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
	"github.com/mantonx/upnpcds/internal/middleware"
)

// handleControl dispatches a SOAP action to the ContentDirectory engine.
func (s *Server) handleControl(c *gin.Context) {
	req, err := parseSOAPRequest(c.Request.Body)
	if err != nil {
		s.writeFault(c, cdserrors.CodeInvalidAction, err)
		return
	}
	if action := actionFromHeader(c.GetHeader("SOAPACTION")); action != "" {
		req.Action = action
	}
	c.Set(middleware.ActionKey, req.Action)

	if !knownAction(req.Action) {
		s.writeFault(c, cdserrors.CodeInvalidAction, nil)
		return
	}

	args, err := s.dispatch(c, req)
	if err != nil {
		s.writeFault(c, cdserrors.UPnPCode(err), err)
		return
	}

	c.Data(http.StatusOK, `text/xml; charset="utf-8"`,
		[]byte(encodeSOAPResponse(cds.ServiceType, req.Action, args)))
}

func (s *Server) dispatch(c *gin.Context, req *soapRequest) ([]soapArg, error) {
	ctx := c.Request.Context()

	switch req.Action {
	case "GetSearchCapabilities":
		return []soapArg{{Name: "SearchCaps", Value: s.svc.GetSearchCapabilities()}}, nil

	case "GetSortCapabilities":
		return []soapArg{{Name: "SortCaps", Value: s.svc.GetSortCapabilities()}}, nil

	case "GetSystemUpdateID":
		return []soapArg{{Name: "Id", Value: strconv.FormatUint(uint64(s.svc.SystemUpdateID()), 10)}}, nil

	case "Browse":
		browse, err := s.browseRequest(c, req)
		if err != nil {
			return nil, err
		}
		res, err := s.svc.Browse(ctx, browse)
		if err != nil {
			return nil, err
		}
		return resultArgs(res), nil

	case "Search":
		search, err := s.searchRequest(c, req)
		if err != nil {
			return nil, err
		}
		res, err := s.svc.Search(ctx, search)
		if err != nil {
			return nil, err
		}
		return resultArgs(res), nil
	}

	return nil, cdserrors.NotSupported(req.Action)
}

func (s *Server) browseRequest(c *gin.Context, req *soapRequest) (cds.BrowseRequest, error) {
	id, err := objectID(req.Arg("ObjectID"))
	if err != nil {
		return cds.BrowseRequest{}, err
	}
	start, count, err := windowArgs(req)
	if err != nil {
		return cds.BrowseRequest{}, err
	}
	return cds.BrowseRequest{
		ObjectID:       id,
		BrowseFlag:     req.Arg("BrowseFlag"),
		Filter:         req.Arg("Filter"),
		StartingIndex:  start,
		RequestedCount: count,
		SortCriteria:   req.Arg("SortCriteria"),
		ContentURL:     s.contentURL(c.Request),
	}, nil
}

func (s *Server) searchRequest(c *gin.Context, req *soapRequest) (cds.SearchRequest, error) {
	id, err := objectID(req.Arg("ContainerID"))
	if err != nil {
		return cds.SearchRequest{}, err
	}
	start, count, err := windowArgs(req)
	if err != nil {
		return cds.SearchRequest{}, err
	}
	return cds.SearchRequest{
		ContainerID:    id,
		SearchCriteria: req.Arg("SearchCriteria"),
		Filter:         req.Arg("Filter"),
		StartingIndex:  start,
		RequestedCount: count,
		SortCriteria:   req.Arg("SortCriteria"),
		ContentURL:     s.contentURL(c.Request),
	}, nil
}

// objectID parses an ObjectID argument. An id that is not a number cannot
// name any object.
func objectID(v string) (catalog.ID, error) {
	if v == "" {
		return catalog.RootID, nil
	}
	id, err := catalog.ParseID(v)
	if err != nil {
		return 0, cdserrors.NotFound("parse_object_id", err).WithObject(v)
	}
	return id, nil
}

func windowArgs(req *soapRequest) (int, int, error) {
	start, err := req.UintArg("StartingIndex")
	if err != nil {
		return 0, 0, cdserrors.InvalidArgument("parse_starting_index", req.Arg("StartingIndex"), err)
	}
	count, err := req.UintArg("RequestedCount")
	if err != nil {
		return 0, 0, cdserrors.InvalidArgument("parse_requested_count", req.Arg("RequestedCount"), err)
	}
	return start, count, nil
}

func resultArgs(res *cds.BrowseResult) []soapArg {
	return []soapArg{
		{Name: "Result", Value: res.Result, CDATA: true},
		{Name: "NumberReturned", Value: strconv.Itoa(res.NumberReturned)},
		{Name: "TotalMatches", Value: strconv.Itoa(res.TotalMatches)},
		{Name: "UpdateID", Value: strconv.FormatUint(uint64(res.UpdateID), 10)},
	}
}

func (s *Server) writeFault(c *gin.Context, code int, err error) {
	if err != nil && code == cdserrors.CodeActionFailed {
		_ = c.Error(err)
	}
	s.logger.Debug("upnp fault", "action", c.GetString(middleware.ActionKey), "code", code, "error", err)
	c.Data(http.StatusInternalServerError, `text/xml; charset="utf-8"`,
		[]byte(encodeSOAPFault(code, cdserrors.Description(code))))
}
