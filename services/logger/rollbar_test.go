package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

func TestRollbarLogger_prepare(t *testing.T) {
	l := NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), core.NewTestConfig())
	err := errors.New("boom")
	extras := map[string]interface{}{"path": "/v1/courses"}

	args := l.prepare("msg", []interface{}{err, user.User{ID: "u1"}, extras, &user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", err, extras}, args)
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewRollbarLogger(log.New(buf, "", 0), core.NewTestConfig())

	l.Debug("cache miss", "stats")
	assert.Equal(t, "DEBUG: cache miss\nstats\n", buf.String())
}
