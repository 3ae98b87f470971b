package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/microvest/backoffice/internal/models"
)

// NotificationService stores in-app notifications and sends outbound email.
// Both are best effort: a failed notification never rolls back the business
// operation that triggered it.
type NotificationService struct {
	db        *sql.DB
	apiKey    string
	fromEmail string
	fromName  string
}

func NewNotificationService(db *sql.DB, sendgridAPIKey, fromEmail, fromName string) *NotificationService {
	return &NotificationService{
		db:        db,
		apiKey:    sendgridAPIKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// NotifyUser records an in-app notification. Safe on a nil service so callers
// never have to guard the optional dependency.
func (s *NotificationService) NotifyUser(ctx context.Context, userID int, kind, title, body string) {
	if s == nil {
		return
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, kind, title, body, read, created_at)
		VALUES ($1, $2, $3, $4, false, NOW())`,
		userID, kind, title, body)
	if err != nil {
		log.Printf("[NOTIFY] Failed to store notification for user %d: %v", userID, err)
	}
}

// SendEmail delivers a message through SendGrid. No-op when the API key is
// unset, so local environments run without credentials.
func (s *NotificationService) SendEmail(to, toName, subject, plainText, htmlContent string) error {
	if s == nil || s.apiKey == "" {
		log.Printf("[NOTIFY] Email to %s skipped, SendGrid not configured", to)
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(toName, to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, htmlContent)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

// SendRepaymentReminder emails a loan officer about an instalment coming due.
func (s *NotificationService) SendRepaymentReminder(to, toName string, loanID int, outstanding int64) error {
	subject := fmt.Sprintf("Repayment due on loan %d", loanID)
	plainText := fmt.Sprintf("Loan %d has %d outstanding and an instalment coming due. Please follow up with the client.", loanID, outstanding)
	htmlContent := fmt.Sprintf(`
		<html>
			<body>
				<h2>Repayment Reminder</h2>
				<p>Loan <strong>%d</strong> has an outstanding balance of <strong>%d</strong> and an instalment coming due.</p>
				<p>Please follow up with the client.</p>
			</body>
		</html>
	`, loanID, outstanding)
	return s.SendEmail(to, toName, subject, plainText, htmlContent)
}

// ListNotifications returns the caller's notifications, unread first
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (s *NotificationService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, user_id, kind, title, body, read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY read ASC, id DESC LIMIT 100`, actor.ID)
	if err != nil {
		log.Printf("[NOTIFY] Listing failed for user %d: %v", actor.ID, err)
		SendErrorResponse(w, "Failed to list notifications", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to list notifications", http.StatusInternalServerError, nil)
			return
		}
		notifications = append(notifications, n)
	}

	writeJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead marks one of the caller's notifications as read
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationId path int true "Notification ID"
// @Success 200 {object} object{id=int,read=bool}
// @Failure 404 {object} ErrorResponse
// @Router /notifications/{notificationId}/read [put]
func (s *NotificationService) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "notificationId"))
	if err != nil {
		SendErrorResponse(w, "Invalid notification id", http.StatusBadRequest, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, actor.ID)
	if err != nil {
		SendErrorResponse(w, "Failed to update notification", http.StatusInternalServerError, nil)
		return
	}
	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		SendErrorResponse(w, "Notification not found", http.StatusNotFound, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "read": true})
}
