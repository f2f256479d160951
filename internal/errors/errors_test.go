package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_PreservesCodeAndCause(t *testing.T) {
	base := ConfigInvalid("threshold out of range")
	wrapped := Wrap(base, "loading options")

	appErr, ok := wrapped.(*AppError)
	require.True(t, ok)
	assert.Equal(t, CodeConfigInvalid, appErr.Code)
	assert.Equal(t, "loading options", appErr.Message)
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrap_ForeignErrorGetsInternalCode(t *testing.T) {
	cause := stderrors.New("disk gone")
	wrapped := Wrapf(cause, "reading %s", "counts.tsv")

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Equal(t, "reading counts.tsv: disk gone", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, cause))
}

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	assert.NoError(t, Wrapf(nil, "ignored %d", 1))
	assert.NoError(t, WithCode(CodeParseError, nil))
}

func TestWithCode_Reclassifies(t *testing.T) {
	base := stderrors.New("svd did not converge")
	coded := WithCode(CodeDegenerateInput, base)

	assert.Equal(t, CodeDegenerateInput, GetCode(coded))
	assert.True(t, stderrors.Is(coded, base))

	// Recoding an AppError replaces the code, keeps message and cause.
	reclassified := WithCode(CodeInternalError, coded)
	assert.Equal(t, CodeInternalError, GetCode(reclassified))
}

func TestGetCode_UnknownForPlainErrors(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.Equal(t, CodeParseError, GetCode(ParseError("bad row")))
}
