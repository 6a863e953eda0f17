package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/kindred/internal/mode"
	"github.com/roach88/kindred/internal/record"
)

const kindKey = "kind"

// ModeResponse is the body of GET /mode and the transition endpoints.
type ModeResponse struct {
	Mode         mode.State `json:"mode"`
	State        mode.State `json:"state"`
	InTransition bool       `json:"in_transition"`
	Pending      int        `json:"pending"`
}

func (s *Server) modeResponse() ModeResponse {
	state := s.ctl.State()
	return ModeResponse{
		Mode:         s.ctl.Mode(),
		State:        state,
		InTransition: state.Switching(),
		Pending:      s.ctl.Pending(),
	}
}

func (s *Server) getMode(c *gin.Context) {
	c.JSON(http.StatusOK, s.modeResponse())
}

func (s *Server) enableRemote(c *gin.Context) {
	if err := s.ctl.EnableRemote(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.modeResponse())
}

func (s *Server) disableRemote(c *gin.Context) {
	if err := s.ctl.DisableRemote(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.modeResponse())
}

// resolveKind validates the :kind parameter for every /records route.
func (s *Server) resolveKind(c *gin.Context) {
	kind, err := record.ParseKind(c.Param("kind"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.Set(kindKey, kind)
	c.Next()
}

func kindOf(c *gin.Context) record.Kind {
	return c.MustGet(kindKey).(record.Kind)
}

// listRecords responds with the records of a kind in identifier order.
//
//	> curl "http://localhost:8080/records/contacts?limit=20"
func (s *Server) listRecords(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit parameter"})
			return
		}
		limit = n
	}

	recs, err := s.ctl.FetchLimit(c.Request.Context(), kindOf(c), nil, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) getRecord(c *gin.Context) {
	rec, err := s.ctl.Get(c.Request.Context(), kindOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// createRecord inserts the JSON body. A body without an id gets one assigned.
//
//	> curl -X POST -d '{"name":"Ann"}' http://localhost:8080/records/contacts
func (s *Server) createRecord(c *gin.Context) {
	rec, ok := s.bindRecord(c)
	if !ok {
		return
	}
	receipt, err := s.ctl.Create(mode.WithAuthor(c.Request.Context(), Author), rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondWrite(c, http.StatusCreated, receipt)
}

// updateRecord overwrites the record named in the path. The id in the body,
// if any, is ignored.
func (s *Server) updateRecord(c *gin.Context) {
	rec, ok := s.bindRecord(c)
	if !ok {
		return
	}
	setID(rec, c.Param("id"))
	receipt, err := s.ctl.Update(mode.WithAuthor(c.Request.Context(), Author), rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondWrite(c, http.StatusOK, receipt)
}

func (s *Server) deleteRecord(c *gin.Context) {
	receipt, err := s.ctl.Delete(mode.WithAuthor(c.Request.Context(), Author), kindOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondWrite(c, http.StatusOK, receipt)
}

func (s *Server) bindRecord(c *gin.Context) (record.Record, bool) {
	rec, err := record.New(kindOf(c))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return nil, false
	}
	if err := c.ShouldBindJSON(rec); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return nil, false
	}
	return rec, true
}

// respondWrite answers 202 for deferred writes and status otherwise.
func (s *Server) respondWrite(c *gin.Context, status int, receipt mode.Receipt) {
	if receipt.Deferred {
		status = http.StatusAccepted
	}
	c.JSON(status, receipt)
}

func setID(r record.Record, id string) {
	switch v := r.(type) {
	case *record.Contact:
		v.ID = id
	case *record.Holiday:
		v.ID = id
	case *record.CardHistoryItem:
		v.ID = id
	case *record.CongratsHistoryItem:
		v.ID = id
	}
}
