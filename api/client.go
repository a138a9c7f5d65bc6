// Package api is the typed client for the console backend's resource
// endpoints. Every call goes through the request gateway and inherits its
// token and retry behavior.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gradcert/console-client/credstore"
	"github.com/gradcert/console-client/gateway"
	"github.com/pkg/errors"
)

// Client issues console API calls.
type Client struct {
	gw *gateway.Gateway
}

// New creates a Client over gw.
func New(gw *gateway.Gateway) (*Client, error) {
	if gw == nil {
		return nil, errors.New("[api.New] gateway is required")
	}
	return &Client{gw: gw}, nil
}

// ListTemplates returns all certificate templates.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	resp, err := c.gw.Do(ctx, http.MethodGet, gateway.EndpointTemplates)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.ListTemplates]")
	}
	var templates []Template
	if err := resp.Decode(&templates); err != nil {
		return nil, errors.Wrap(err, "[Client.ListTemplates]")
	}
	return templates, nil
}

// GetTemplate returns one template by id.
func (c *Client) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	resp, err := c.gw.Do(ctx, http.MethodGet, templateEndpoint(id))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.GetTemplate]")
	}
	var template Template
	if err := resp.Decode(&template); err != nil {
		return nil, errors.Wrap(err, "[Client.GetTemplate]")
	}
	return &template, nil
}

// CreateTemplate creates a template and returns it.
func (c *Client) CreateTemplate(ctx context.Context, input TemplateInput) (*Template, error) {
	resp, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointTemplates, gateway.WithJSONBody(input))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.CreateTemplate]")
	}
	var template Template
	if err := resp.Decode(&template); err != nil {
		return nil, errors.Wrap(err, "[Client.CreateTemplate]")
	}
	return &template, nil
}

// UpdateTemplate replaces a template's fields and returns the result.
func (c *Client) UpdateTemplate(ctx context.Context, id int64, input TemplateInput) (*Template, error) {
	resp, err := c.gw.Do(ctx, http.MethodPut, templateEndpoint(id), gateway.WithJSONBody(input))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UpdateTemplate]")
	}
	var template Template
	if err := resp.Decode(&template); err != nil {
		return nil, errors.Wrap(err, "[Client.UpdateTemplate]")
	}
	return &template, nil
}

// DeleteTemplate deletes a template.
func (c *Client) DeleteTemplate(ctx context.Context, id int64) error {
	if _, err := c.gw.Do(ctx, http.MethodDelete, templateEndpoint(id)); err != nil {
		return errors.Wrap(err, "[Client.DeleteTemplate]")
	}
	return nil
}

// ListGraduants returns one page of graduants. page <= 1 requests the first
// page.
func (c *Client) ListGraduants(ctx context.Context, page int) (*GraduantPage, error) {
	opts := []gateway.RequestOption{}
	if page > 1 {
		opts = append(opts, gateway.WithQuery("page", strconv.Itoa(page)))
	}
	resp, err := c.gw.Do(ctx, http.MethodGet, gateway.EndpointGraduants, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.ListGraduants]")
	}
	var result GraduantPage
	if err := resp.Decode(&result); err != nil {
		return nil, errors.Wrap(err, "[Client.ListGraduants]")
	}
	return &result, nil
}

// AddGraduant registers a certificate recipient.
func (c *Client) AddGraduant(ctx context.Context, input GraduantInput) (*Graduant, error) {
	resp, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointGraduants, gateway.WithJSONBody(input))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.AddGraduant]")
	}
	var graduant Graduant
	if err := resp.Decode(&graduant); err != nil {
		return nil, errors.Wrap(err, "[Client.AddGraduant]")
	}
	return &graduant, nil
}

// DeleteGraduant removes a recipient.
func (c *Client) DeleteGraduant(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("%s%d/", gateway.EndpointGraduants, id)
	if _, err := c.gw.Do(ctx, http.MethodDelete, endpoint); err != nil {
		return errors.Wrap(err, "[Client.DeleteGraduant]")
	}
	return nil
}

// GenerateCertificates bulk-generates certificates from a template.
func (c *Client) GenerateCertificates(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	resp, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointGenerate, gateway.WithJSONBody(req))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.GenerateCertificates]")
	}
	var result GenerateResult
	if err := resp.Decode(&result); err != nil {
		return nil, errors.Wrap(err, "[Client.GenerateCertificates]")
	}
	return &result, nil
}

// SendCertificateEmails asks the backend to email generated certificates to
// their recipients.
func (c *Client) SendCertificateEmails(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	resp, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointSendEmails, gateway.WithJSONBody(req))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.SendCertificateEmails]")
	}
	var result SendEmailResult
	if err := resp.Decode(&result); err != nil {
		return nil, errors.Wrap(err, "[Client.SendCertificateEmails]")
	}
	return &result, nil
}

// DashboardStats returns the console dashboard counters.
func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	resp, err := c.gw.Do(ctx, http.MethodGet, gateway.EndpointDashboardStats)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.DashboardStats]")
	}
	var stats DashboardStats
	if err := resp.Decode(&stats); err != nil {
		return nil, errors.Wrap(err, "[Client.DashboardStats]")
	}
	return &stats, nil
}

// UpdateProfile patches the signed-in user's profile and returns the
// updated user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*credstore.User, error) {
	resp, err := c.gw.Do(ctx, http.MethodPatch, gateway.EndpointProfile, gateway.WithJSONBody(update))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UpdateProfile]")
	}
	var user credstore.User
	if err := resp.Decode(&user); err != nil {
		return nil, errors.Wrap(err, "[Client.UpdateProfile]")
	}
	return &user, nil
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, change PasswordChange) error {
	if _, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointChangePassword, gateway.WithJSONBody(change)); err != nil {
		return errors.Wrap(err, "[Client.ChangePassword]")
	}
	return nil
}

// RequestPasswordReset starts a password reset for email. Unauthenticated.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	payload := struct {
		Email string `json:"email"`
	}{Email: email}
	if _, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointPasswordReset, gateway.WithJSONBody(payload)); err != nil {
		return errors.Wrap(err, "[Client.RequestPasswordReset]")
	}
	return nil
}

// ConfirmPasswordReset completes a password reset. Unauthenticated.
func (c *Client) ConfirmPasswordReset(ctx context.Context, confirm PasswordResetConfirm) error {
	if _, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointPasswordResetConfirm, gateway.WithJSONBody(confirm)); err != nil {
		return errors.Wrap(err, "[Client.ConfirmPasswordReset]")
	}
	return nil
}

func templateEndpoint(id int64) string {
	return fmt.Sprintf("%s%d/", gateway.EndpointTemplates, id)
}
