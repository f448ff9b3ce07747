package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tutorcenter/core/attendance"
	"github.com/trezcool/tutorcenter/tests"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "API : ", 0), testutil.NewConfig())
	logger.Enable(false)

	ent := attendance.Entity{ID: "tutor-1", Type: attendance.Tutor, Name: "Asha"}
	logger.Warn("submitting attendance: center_not_assigned", ent, map[string]interface{}{"actor": "admin"})
	logger.Error("building report", errors.New("store down"), attendance.Entity{})

	out := buf.String()
	assert.Contains(t, out, "API : WARN: submitting attendance: center_not_assigned")
	assert.Contains(t, out, "entity: tutor-1 (tutor)")
	assert.Contains(t, out, "map[actor:admin]")
	assert.Contains(t, out, "API : ERROR: building report")
	assert.Contains(t, out, "store down")
	assert.NotContains(t, out, "entity:  (")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	ent := attendance.Entity{ID: "tutor-1", Name: "Asha"}
	err := errors.New("boom")

	args := logger.prepare("msg", []interface{}{ent, err, attendance.Entity{ID: "tutor-2"}})
	assert.Equal(t, []interface{}{"msg", err}, args)
}
