package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gradcert/console-client/api"
	"github.com/gradcert/console-client/session"
	"github.com/spf13/cobra"
)

func newLoginCommand() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if username == "" {
				username = prompt("Username or email: ")
			}
			if password == "" {
				password = prompt("Password: ")
			}
			user, err := a.controller.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			a.controller.Logout()
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if a.controller.Restore(cmd.Context()) != session.Authenticated {
				return fmt.Errorf("not signed in; run '%s login'", appName)
			}
			user := a.controller.CurrentUser()
			fmt.Printf("%s (%s) <%s>\n", user.Name, user.Username, user.Email)
			return nil
		},
	}
}

func newRegisterCommand() *cobra.Command {
	var req session.RegisterRequest
	var imagePath string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a console account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if imagePath != "" {
				content, err := os.ReadFile(imagePath)
				if err != nil {
					return err
				}
				req.ProfileImage = content
				req.ProfileImageName = filepath.Base(imagePath)
			}
			return a.controller.Register(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")
	cmd.Flags().StringVar(&imagePath, "image", "", "Profile image file")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newResetPasswordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request or confirm a password reset",
	}

	var email string
	request := &cobra.Command{
		Use:   "request",
		Short: "Email a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if err := a.client.RequestPasswordReset(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Println("Password reset requested. Check your email.")
			return nil
		},
	}
	request.Flags().StringVar(&email, "email", "", "Account email")
	_ = request.MarkFlagRequired("email")

	var confirm api.PasswordResetConfirm
	confirmCmd := &cobra.Command{
		Use:   "confirm",
		Short: "Complete a password reset",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if err := a.client.ConfirmPasswordReset(cmd.Context(), confirm); err != nil {
				return err
			}
			fmt.Println("Password updated. You can now log in.")
			return nil
		},
	}
	confirmCmd.Flags().StringVar(&confirm.Token, "token", "", "Reset token")
	confirmCmd.Flags().StringVar(&confirm.UID, "uid", "", "Reset uid")
	confirmCmd.Flags().StringVar(&confirm.NewPassword, "new-password", "", "New password")
	_ = confirmCmd.MarkFlagRequired("token")
	_ = confirmCmd.MarkFlagRequired("uid")
	_ = confirmCmd.MarkFlagRequired("new-password")

	cmd.AddCommand(request, confirmCmd)
	return cmd
}

func newTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage certificate templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			templates, err := a.client.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			for _, template := range templates {
				fmt.Printf("%d\t%s\t%s\n", template.ID, template.Title, template.Organization)
			}
			return nil
		},
	}

	var input api.TemplateInput
	var contentPath string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if contentPath != "" {
				content, err := os.ReadFile(contentPath)
				if err != nil {
					return err
				}
				input.Content = string(content)
			}
			template, err := a.client.CreateTemplate(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Printf("Created template %d: %s\n", template.ID, template.Title)
			return nil
		},
	}
	create.Flags().StringVar(&input.Title, "title", "", "Certificate title")
	create.Flags().StringVar(&input.Description, "description", "", "Certificate description")
	create.Flags().StringVar(&input.Organization, "organization", "", "Issuing organization")
	create.Flags().StringVar(&input.Validity, "validity", "", "Validity period (e.g. '1 year', 'Lifetime')")
	create.Flags().StringVar(&contentPath, "content", "", "HTML content file")
	_ = create.MarkFlagRequired("title")

	var deleteID int64
	remove := &cobra.Command{
		Use:   "delete",
		Short: "Delete a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return a.client.DeleteTemplate(cmd.Context(), deleteID)
		},
	}
	remove.Flags().Int64Var(&deleteID, "id", 0, "Template id")
	_ = remove.MarkFlagRequired("id")

	cmd.AddCommand(list, create, remove)
	return cmd
}

func newGraduantsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graduants",
		Short: "Manage certificate recipients",
	}

	var page int
	list := &cobra.Command{
		Use:   "list",
		Short: "List graduants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			result, err := a.client.ListGraduants(cmd.Context(), page)
			if err != nil {
				return err
			}
			for _, graduant := range result.Results {
				fmt.Printf("%d\t%s\t%s\t%s\n", graduant.ID, graduant.Name, graduant.Email, graduant.Course)
			}
			fmt.Printf("(%d total)\n", result.Count)
			return nil
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")

	var input api.GraduantInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a graduant",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			graduant, err := a.client.AddGraduant(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Printf("Added graduant %d: %s\n", graduant.ID, graduant.Name)
			return nil
		},
	}
	add.Flags().StringVar(&input.Name, "name", "", "Full name")
	add.Flags().StringVar(&input.Email, "email", "", "Email address")
	add.Flags().StringVar(&input.Course, "course", "", "Course or program")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")

	cmd.AddCommand(list, add)
	return cmd
}

func newCertificatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificates",
		Short: "Generate and send certificates",
	}

	var generateReq api.GenerateRequest
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Bulk-generate certificates from a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			result, err := a.client.GenerateCertificates(cmd.Context(), generateReq)
			if err != nil {
				return err
			}
			fmt.Printf("Generated %d certificates\n", result.Generated)
			return nil
		},
	}
	generate.Flags().Int64Var(&generateReq.TemplateID, "template", 0, "Template id")
	generate.Flags().Int64SliceVar(&generateReq.GraduantIDs, "graduants", nil, "Graduant ids")
	_ = generate.MarkFlagRequired("template")
	_ = generate.MarkFlagRequired("graduants")

	var sendReq api.SendEmailRequest
	send := &cobra.Command{
		Use:   "send",
		Short: "Email generated certificates to their recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			result, err := a.client.SendCertificateEmails(cmd.Context(), sendReq)
			if err != nil {
				return err
			}
			fmt.Printf("Sent %d certificate emails\n", result.Sent)
			return nil
		},
	}
	send.Flags().Int64SliceVar(&sendReq.CertificateIDs, "certificates", nil, "Certificate ids")
	send.Flags().StringVar(&sendReq.Subject, "subject", "", "Email subject")
	send.Flags().StringVar(&sendReq.Message, "message", "", "Email message")
	_ = send.MarkFlagRequired("certificates")

	cmd.AddCommand(generate, send)
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			stats, err := a.client.DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Templates:    %d\n", stats.Templates)
			fmt.Printf("Graduants:    %d\n", stats.Graduants)
			fmt.Printf("Certificates: %d\n", stats.Certificates)
			fmt.Printf("Emails sent:  %d\n", stats.EmailsSent)
			return nil
		},
	}
}

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
