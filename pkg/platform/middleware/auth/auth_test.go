package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"purchasegate/pkg/requestcontext"
)

const (
	testParentID = "550e8400-e29b-41d4-a716-446655440001"
	testFamilyID = "550e8400-e29b-41d4-a716-446655440002"
)

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateSession(token string) (*SessionClaims, error) {
	args := m.Called(token)
	if claims := args.Get(0); claims != nil {
		return claims.(*SessionClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

type captureHandler struct {
	called bool
	ctx    context.Context
}

func (c *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.called = true
	c.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type RequireParentSuite struct {
	suite.Suite
	validator *MockTokenValidator
	next      *captureHandler
}

func TestRequireParentSuite(t *testing.T) {
	suite.Run(t, new(RequireParentSuite))
}

func (s *RequireParentSuite) SetupTest() {
	s.validator = new(MockTokenValidator)
	s.next = &captureHandler{}
}

func (s *RequireParentSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
}

func (s *RequireParentSuite) serve(authHeader string) *httptest.ResponseRecorder {
	handler := RequireParent(s.validator, slog.Default())(s.next)
	req := httptest.NewRequest(http.MethodGet, "/v1/approvals", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func (s *RequireParentSuite) TestValidToken() {
	s.validator.On("ValidateSession", "good").Return(&SessionClaims{ParentID: testParentID, FamilyID: testFamilyID}, nil)

	w := s.serve("Bearer good")

	s.Require().True(s.next.called)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(testParentID, requestcontext.ParentID(s.next.ctx).String())
	s.Equal(testFamilyID, requestcontext.FamilyID(s.next.ctx).String())
}

func (s *RequireParentSuite) TestMissingHeader() {
	w := s.serve("")
	s.False(s.next.called)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`, w.Body.String())
}

func (s *RequireParentSuite) TestWrongScheme() {
	w := s.serve("Basic dXNlcjpwYXNz")
	s.False(s.next.called)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RequireParentSuite) TestInvalidToken() {
	s.validator.On("ValidateSession", "bad").Return(nil, errors.New("signature invalid"))

	w := s.serve("Bearer bad")
	s.False(s.next.called)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"error":"unauthorized","error_description":"Invalid or expired token"}`, w.Body.String())
}

func (s *RequireParentSuite) TestMalformedClaims() {
	s.Run("parent id", func() {
		s.next.called = false
		s.validator.On("ValidateSession", "t1").Return(&SessionClaims{ParentID: "nope", FamilyID: testFamilyID}, nil).Once()
		w := s.serve("Bearer t1")
		s.False(s.next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
	s.Run("nil parent id", func() {
		s.next.called = false
		s.validator.On("ValidateSession", "t2").Return(&SessionClaims{ParentID: "00000000-0000-0000-0000-000000000000", FamilyID: testFamilyID}, nil).Once()
		w := s.serve("Bearer t2")
		s.False(s.next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
	s.Run("family id", func() {
		s.next.called = false
		s.validator.On("ValidateSession", "t3").Return(&SessionClaims{ParentID: testParentID, FamilyID: ""}, nil).Once()
		w := s.serve("Bearer t3")
		s.False(s.next.called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}
