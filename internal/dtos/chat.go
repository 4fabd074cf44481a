// File: internal/dtos/chat.go
package dtos

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/iyunix/go-parley/internal/domain"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate runs the struct tags and turns the first failure into a
// readable message.
func Validate(req interface{}) error {
	err := validatorInstance().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%s failed %s", fe.Field(), fe.Tag())
	}
	return err
}

// CreateChatRequestDTO is the body of POST /chats. The caller is added to
// Participants if missing.
type CreateChatRequestDTO struct {
	Participants []string `json:"participants" validate:"required,min=1,max=256,dive,required,max=128"`
	Type         string   `json:"type" validate:"omitempty,oneof=direct group"`
	Name         string   `json:"name" validate:"max=100"`
	Description  string   `json:"description" validate:"max=500"`
}

func (r CreateChatRequestDTO) ChatType() domain.ChatType {
	if r.Type == "" {
		return domain.ChatTypeDirect
	}
	return domain.ChatType(r.Type)
}

type AttachmentDTO struct {
	URL      string `json:"fileUrl" validate:"required,url"`
	Name     string `json:"fileName" validate:"required,max=255"`
	MimeType string `json:"fileType" validate:"max=127"`
	Size     int64  `json:"fileSize" validate:"gte=0"`
}

// SendMessageRequestDTO is the body of POST /chats/{id}/messages.
type SendMessageRequestDTO struct {
	Content string         `json:"content" validate:"max=1000"`
	Type    string         `json:"type" validate:"omitempty,oneof=text image file"`
	File    *AttachmentDTO `json:"file" validate:"omitempty"`
}

func (r SendMessageRequestDTO) Payload() (domain.Payload, error) {
	var file *domain.Attachment
	if r.File != nil {
		file = &domain.Attachment{URL: r.File.URL, Name: r.File.Name, MimeType: r.File.MimeType, Size: r.File.Size}
	}
	return domain.NewPayload(domain.MessageType(r.Type), r.Content, file)
}

type EditMessageRequestDTO struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type ReactionRequestDTO struct {
	Reaction string `json:"reaction" validate:"required,max=32"`
}

// UpdateSettingsRequestDTO is a partial update; absent fields are untouched.
type UpdateSettingsRequestDTO struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Muted       *bool   `json:"muted"`
	Archived    *bool   `json:"archived"`
	Pinned      *bool   `json:"pinned"`
}

func (r UpdateSettingsRequestDTO) Settings() chatservice.Settings {
	return chatservice.Settings{
		Name:        r.Name,
		Description: r.Description,
		Muted:       r.Muted,
		Archived:    r.Archived,
		Pinned:      r.Pinned,
	}
}

type AddParticipantRequestDTO struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

// MarkReadResponseDTO is returned by POST /chats/{id}/read.
type MarkReadResponseDTO struct {
	Message      string `json:"message"`
	MessagesRead int    `json:"messagesRead"`
}

func NewMarkReadResponse(r chatservice.ReadReceipt) MarkReadResponseDTO {
	return MarkReadResponseDTO{Message: "Messages marked as read", MessagesRead: r.MessagesRead}
}
