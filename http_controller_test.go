package passwordless_test

import (
	"context"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-passwordless"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLoginController(manager *passwordless.SessionManager) *passwordless.LoginController {
	return passwordless.NewLoginController(func(c *passwordless.LoginController) *passwordless.LoginController {
		c.Manager = manager
		return c
	})
}

func TestLoginShowRendersLoginView(t *testing.T) {
	manager := passwordless.NewSessionManager(nil, &MockIdentityClient{}, stubConfig{production: true})
	ctrl := newTestLoginController(manager)

	ctx := &MockContext{}
	ctx.On("Render", ctrl.Views.Login, mock.Anything).Return(nil).Once()

	require.NoError(t, ctrl.LoginShow(ctx))
	ctx.AssertExpectations(t)
}

func TestVerifyShowRedirectsWithoutPendingCode(t *testing.T) {
	manager := passwordless.NewSessionManager(nil, &MockIdentityClient{}, stubConfig{production: true})
	ctrl := newTestLoginController(manager)

	ctx := &MockContext{}
	ctx.On("Redirect", ctrl.Routes.Login, []int{http.StatusSeeOther}).Return(nil).Once()

	require.NoError(t, ctrl.VerifyShow(ctx))
	ctx.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
	ctx.AssertExpectations(t)
}

func TestVerifyShowExposesDevCodeOutsideProduction(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("IssueCode", mock.Anything, "user@example.com").
		Return(&passwordless.IssueCodeResponse{DevCode: "123456"}, nil).Once()

	manager := passwordless.NewSessionManager(nil, client, stubConfig{production: false})
	require.NoError(t, manager.RequestCode(context.Background(), "user@example.com"))

	ctrl := newTestLoginController(manager)

	var view router.ViewContext
	ctx := &MockContext{}
	ctx.On("Render", ctrl.Views.Verify, mock.Anything).
		Run(func(args mock.Arguments) {
			view = args.Get(1).(router.ViewContext)
		}).
		Return(nil).Once()

	require.NoError(t, ctrl.VerifyShow(ctx))
	assert.Equal(t, "user@example.com", view["email"])
	assert.Equal(t, "123456", view["dev_code"])
}

func TestVerifyShowHidesDevCodeInProduction(t *testing.T) {
	client := &MockIdentityClient{}
	client.On("IssueCode", mock.Anything, "user@example.com").
		Return(&passwordless.IssueCodeResponse{DevCode: "123456"}, nil).Once()

	manager := passwordless.NewSessionManager(nil, client, stubConfig{production: true})
	require.NoError(t, manager.RequestCode(context.Background(), "user@example.com"))

	ctrl := newTestLoginController(manager)

	var view router.ViewContext
	ctx := &MockContext{}
	ctx.On("Render", ctrl.Views.Verify, mock.Anything).
		Run(func(args mock.Arguments) {
			view = args.Get(1).(router.ViewContext)
		}).
		Return(nil).Once()

	require.NoError(t, ctrl.VerifyShow(ctx))
	assert.NotContains(t, view, "dev_code")
}

func TestRequestCodePayloadValidation(t *testing.T) {
	assert.NoError(t, passwordless.RequestCodePayload{Email: "user@example.com"}.Validate())
	assert.Error(t, passwordless.RequestCodePayload{}.Validate())
	assert.Error(t, passwordless.RequestCodePayload{Email: "not-an-email"}.Validate())
}

func TestVerifyCodePayloadValidation(t *testing.T) {
	assert.NoError(t, passwordless.VerifyCodePayload{Code: "123456"}.Validate())
	assert.Error(t, passwordless.VerifyCodePayload{}.Validate())
	assert.Error(t, passwordless.VerifyCodePayload{Code: "12345"}.Validate())
	assert.Error(t, passwordless.VerifyCodePayload{Code: "1234567"}.Validate())
	assert.Error(t, passwordless.VerifyCodePayload{Code: "12a456"}.Validate())
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "123456", passwordless.NormalizeCode("123456"))
	assert.Equal(t, "123456", passwordless.NormalizeCode("123 456"))
	assert.Equal(t, "123456", passwordless.NormalizeCode("123-456"))
	assert.Equal(t, "123456", passwordless.NormalizeCode(" 12 34 56 "))
	assert.Equal(t, "", passwordless.NormalizeCode("abc"))
}

func TestFormatValidationErrorToMap(t *testing.T) {
	err := passwordless.RequestCodePayload{Email: "nope"}.Validate()
	require.Error(t, err)
	require.IsType(t, validation.Errors{}, err)

	out := passwordless.FormatValidationErrorToMap(err)
	assert.Contains(t, out, "email")

	assert.Empty(t, passwordless.FormatValidationErrorToMap(nil))
}
