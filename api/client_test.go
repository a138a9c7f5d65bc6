package api_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gradcert/console-client/api"
	"github.com/gradcert/console-client/broadcast"
	"github.com/gradcert/console-client/credstore/storefakes"
	"github.com/gradcert/console-client/gateway"
	"github.com/gradcert/console-client/internal/backendtest"
	"github.com/gradcert/console-client/token"
	"github.com/gradcert/console-client/token/refresh"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, server *backendtest.Server) *api.Client {
	t.Helper()

	store := storefakes.NewFakeStore()
	store.Set(server.SeededRecord(15 * time.Minute))

	validator := token.NewValidator(store)
	refresher := refresh.NewCoordinator(store, server.URL)
	tokens, err := token.NewManager(store, validator, refresher)
	require.NoError(t, err)

	gw, err := gateway.New(server.URL, tokens, broadcast.New())
	require.NoError(t, err)

	client, err := api.New(gw)
	require.NoError(t, err)
	return client
}

func TestTemplateLifecycle(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)
	ctx := context.Background()

	created, err := client.CreateTemplate(ctx, api.TemplateInput{
		Title:        "Graduation 2026",
		Description:  "Class of 2026",
		Organization: "Example University",
		Validity:     "lifetime",
		Content:      "Awarded to {name} for completing {course}.",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, "Graduation 2026", created.Title)

	fetched, err := client.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)

	updated, err := client.UpdateTemplate(ctx, created.ID, api.TemplateInput{
		Title:   "Graduation 2026 (final)",
		Content: created.Content,
	})
	require.NoError(t, err)
	require.Equal(t, "Graduation 2026 (final)", updated.Title)

	templates, err := client.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	require.NoError(t, client.DeleteTemplate(ctx, created.ID))

	templates, err = client.ListTemplates(ctx)
	require.NoError(t, err)
	require.Empty(t, templates)
}

func TestGetMissingTemplateReturnsAPIError(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)

	_, err := client.GetTemplate(context.Background(), 404)
	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestGraduantPagination(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := client.AddGraduant(ctx, api.GraduantInput{
			Name:   fmt.Sprintf("Graduant %02d", i),
			Email:  fmt.Sprintf("graduant%02d@example.com", i),
			Course: "Computer Science",
		})
		require.NoError(t, err)
	}

	first, err := client.ListGraduants(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 12, first.Count)
	require.Len(t, first.Results, 10)

	second, err := client.ListGraduants(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 12, second.Count)
	require.Len(t, second.Results, 2)
}

func TestDeleteGraduant(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)
	ctx := context.Background()

	graduant, err := client.AddGraduant(ctx, api.GraduantInput{
		Name:  "Jane Roe",
		Email: "jane@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, client.DeleteGraduant(ctx, graduant.ID))

	page, err := client.ListGraduants(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, page.Count)
}

func TestGenerateAndSendCertificates(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)
	ctx := context.Background()

	template, err := client.CreateTemplate(ctx, api.TemplateInput{Title: "Diploma"})
	require.NoError(t, err)

	var graduantIDs []int64
	for i := 0; i < 3; i++ {
		graduant, err := client.AddGraduant(ctx, api.GraduantInput{
			Name:  fmt.Sprintf("Graduant %d", i),
			Email: fmt.Sprintf("g%d@example.com", i),
		})
		require.NoError(t, err)
		graduantIDs = append(graduantIDs, graduant.ID)
	}

	generated, err := client.GenerateCertificates(ctx, api.GenerateRequest{
		TemplateID:  template.ID,
		GraduantIDs: graduantIDs,
	})
	require.NoError(t, err)
	require.Equal(t, 3, generated.Generated)
	require.Len(t, generated.CertificateIDs, 3)

	sent, err := client.SendCertificateEmails(ctx, api.SendEmailRequest{
		CertificateIDs: generated.CertificateIDs,
		Subject:        "Your certificate",
	})
	require.NoError(t, err)
	require.Equal(t, 3, sent.Sent)
	require.Equal(t, 3, server.EmailsSent())

	stats, err := client.DashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Templates)
	require.Equal(t, 3, stats.Graduants)
	require.Equal(t, 3, stats.Certificates)
	require.Equal(t, 3, stats.EmailsSent)
}

func TestUpdateProfilePatchesOnlyGivenFields(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)

	user, err := client.UpdateProfile(context.Background(), api.ProfileUpdate{Name: "J. Doe"})
	require.NoError(t, err)
	require.Equal(t, "J. Doe", user.Name)
	require.Equal(t, backendtest.DefaultUser.Email, user.Email)
}

func TestChangePasswordChecksOldPassword(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)
	ctx := context.Background()

	require.NoError(t, client.ChangePassword(ctx, api.PasswordChange{
		OldPassword: backendtest.DefaultPassword,
		NewPassword: "even-better-password",
	}))

	err := client.ChangePassword(ctx, api.PasswordChange{
		OldPassword: "wrong",
		NewPassword: "whatever",
	})
	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestPasswordResetFlow(t *testing.T) {
	server := backendtest.New(t)
	client := newClient(t, server)
	ctx := context.Background()

	require.NoError(t, client.RequestPasswordReset(ctx, "jdoe@example.com"))
	require.NoError(t, client.ConfirmPasswordReset(ctx, api.PasswordResetConfirm{
		Token:       "reset-token",
		UID:         "1",
		NewPassword: "brand-new-password",
	}))
}
