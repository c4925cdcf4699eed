package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite covers the code-preserving wrap rules the ingest and
// export boundaries depend on.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorString() {
	s.Run("message wins over code", func() {
		err := &Error{Code: CodeValidation, Message: "service is required"}
		s.Equal("service is required", err.Error())
	})

	s.Run("falls back to code", func() {
		s.Equal("LOG_ERROR", (&Error{Code: CodeLogError}).Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	a := &Error{Code: CodeNotFound, Message: "consent not found"}
	b := &Error{Code: CodeNotFound, Message: "object not found"}
	s.True(errors.Is(a, b))
	s.False(errors.Is(a, &Error{Code: CodeInternal}))
	s.False(a.Is(errors.New("not found")))

	chained := &Error{Code: CodeInternal, Err: a}
	s.True(errors.Is(chained, &Error{Code: CodeNotFound}))
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("keeps the inner domain code", func() {
		wrapped := Wrap(New(CodeValidation, "bad entry"), CodeInternal, "ingest failed")
		var de *Error
		s.Require().True(errors.As(wrapped, &de))
		s.Equal(CodeValidation, de.Code)
		s.Equal("ingest failed", de.Message)
	})

	s.Run("applies the code to plain errors", func() {
		root := fmt.Errorf("put object: %w", errors.New("connection reset"))
		wrapped := Wrap(root, CodeUnavailable, "lake unavailable")
		s.True(HasCode(wrapped, CodeUnavailable))
		s.True(errors.Is(wrapped, root))
	})
}

func (s *DomainErrorsSuite) TestRewrap() {
	inner := New(CodeTimeout, "request timed out")
	outer := Rewrap(inner, CodeLogError, "failed to log entry")

	s.True(HasCode(outer, CodeLogError))
	s.True(errors.Is(outer, &Error{Code: CodeTimeout}), "inner code stays reachable through the chain")
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.True(HasCode(New(CodeMissingConsent, "no consent"), CodeMissingConsent))
	s.False(HasCode(New(CodeMissingConsent, "no consent"), CodeInternal))
	s.False(HasCode(errors.New("plain"), CodeInternal))
	s.False(HasCode(nil, CodeInternal))
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Equal(Code(""), CodeOf(nil))
	s.Equal(CodeInternal, CodeOf(errors.New("plain")))
	s.Equal(CodeLogError, CodeOf(fmt.Errorf("flush: %w", Rewrap(New(CodeTimeout, "slow"), CodeLogError, "failed"))))
}
