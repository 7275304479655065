// Package services содержит сервис отправки почтовых уведомлений:
// синхронную отправку ссылок восстановления пароля и обработку сообщений
// очереди о неуспешных списаниях.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/planboard/addin-backend/internal/lib/sl"
	"github.com/planboard/addin-backend/internal/lib/smtp"
	"github.com/planboard/addin-backend/internal/models"
)

type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendResetLink отправляет пользователю ссылку восстановления пароля.
// Вызывается синхронно из запроса восстановления: ошибка отправки
// возвращается вызывающей стороне.
func (s *SenderService) SendResetLink(email, link string) error {
	to := []string{email}
	subject := "Восстановление пароля Planboard"
	bodyText := fmt.Sprintf(`Здравствуйте!

Вы запросили восстановление пароля. Перейдите по ссылке, чтобы задать новый пароль: %s

Ссылка действительна один час. Если вы не запрашивали восстановление, просто проигнорируйте это письмо.`, link)

	return s.sendEmail(to, subject, bodyText)
}

// SendDunningNotice обрабатывает сообщение очереди о неуспешном списании
// и отправляет пользователю уведомление.
func (s *SenderService) SendDunningNotice(body []byte) error {
	var notice models.DunningNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{notice.Email}
	subject := "Не удалось продлить подписку Planboard"
	bodyText := fmt.Sprintf(`Здравствуйте!

Очередное списание за подписку Planboard (план %s) не прошло.
Пожалуйста, проверьте платёжные данные: пока оплата не поступит, подписка остаётся приостановленной.`, notice.Plan)

	return s.sendEmail(to, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), "error", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, "error", sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
