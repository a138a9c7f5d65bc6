package api

import "time"

// Template is a certificate template.
type Template struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Organization string    `json:"organization"`
	Validity     string    `json:"validity"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// TemplateInput is the payload for creating or updating a template.
type TemplateInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Organization string `json:"organization"`
	Validity     string `json:"validity"`
	Content      string `json:"content"`
}

// Graduant is a certificate recipient.
type Graduant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Course    string    `json:"course"`
	CreatedAt time.Time `json:"created_at"`
}

// GraduantInput is the payload for adding a graduant.
type GraduantInput struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Course string `json:"course"`
}

// GraduantPage is one page of graduants.
type GraduantPage struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []Graduant `json:"results"`
}

// Certificate is a generated certificate document.
type Certificate struct {
	ID         int64     `json:"id"`
	TemplateID int64     `json:"template_id"`
	GraduantID int64     `json:"graduant_id"`
	Status     string    `json:"status"`
	IssuedAt   time.Time `json:"issued_at"`
}

// GenerateRequest asks the backend to bulk-generate certificates.
type GenerateRequest struct {
	TemplateID  int64   `json:"template_id"`
	GraduantIDs []int64 `json:"graduant_ids"`
}

// GenerateResult reports a bulk generation outcome.
type GenerateResult struct {
	Generated      int     `json:"generated"`
	CertificateIDs []int64 `json:"certificate_ids"`
}

// SendEmailRequest asks the backend to email generated certificates.
type SendEmailRequest struct {
	CertificateIDs []int64 `json:"certificate_ids"`
	Subject        string  `json:"subject"`
	Message        string  `json:"message"`
}

// SendEmailResult reports an email dispatch outcome.
type SendEmailResult struct {
	Sent int `json:"sent"`
}

// DashboardStats are the console dashboard counters.
type DashboardStats struct {
	Templates    int `json:"templates"`
	Graduants    int `json:"graduants"`
	Certificates int `json:"certificates"`
	EmailsSent   int `json:"emails_sent"`
}

// ProfileUpdate is a partial profile patch; empty fields are left unchanged.
type ProfileUpdate struct {
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// PasswordChange is the authenticated change-password payload.
type PasswordChange struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// PasswordResetConfirm completes a password reset started by email.
type PasswordResetConfirm struct {
	Token       string `json:"token"`
	UID         string `json:"uid"`
	NewPassword string `json:"new_password"`
}
