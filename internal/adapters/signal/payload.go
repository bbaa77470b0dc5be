package signal

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dkeye/Estimate/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors maps payload fields to the error a failed check reports.
var fieldErrors = map[string]error{
	"name":         domain.ErrNameRequired,
	"topic":        domain.ErrTopicRequired,
	"templateIds":  domain.ErrNoTemplates,
	"timerSeconds": domain.ErrInvalidTimer,
	"vote":         domain.ErrInvalidVote,
}

type createRoomPayload struct {
	Name string `json:"name" validate:"max=256"`
}

type rejoinRoomPayload struct {
	RoomCode   string `json:"roomCode" validate:"required"`
	AdminToken string `json:"adminToken"`
}

type joinRoomPayload struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required,max=256"`
}

type kickPayload struct {
	SocketID string `json:"socketId" validate:"required"`
}

type startVotingPayload struct {
	TemplateIDs  templateIDs `json:"templateIds" validate:"min=1,dive,required"`
	Topic        string      `json:"topic" validate:"required"`
	TimerSeconds *int        `json:"timerSeconds" validate:"omitempty,min=1,max=3600"`
}

type votePayload struct {
	TemplateID string `json:"templateId" validate:"required"`
	Vote       string `json:"vote" validate:"required"`
}

type removeVotePayload struct {
	TemplateID string `json:"templateId" validate:"required"`
}

// templateIDs accepts a single id or a list of ids.
type templateIDs []string

func (t *templateIDs) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*t = templateIDs{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

func (t templateIDs) ids() []domain.TemplateID {
	out := make([]domain.TemplateID, 0, len(t))
	for _, id := range t {
		out = append(out, domain.TemplateID(id))
	}
	return out
}

func decode[T any](data []byte) (T, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return p, domain.WrapError(domain.CodeInvalidInput, domain.ErrBadPayload.Message, err)
	}
	if err := validate.Struct(p); err != nil {
		return p, validationError(err)
	}
	return p, nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return domain.WrapError(domain.CodeInvalidInput, domain.ErrBadPayload.Message, err)
	}
	field, _, _ := strings.Cut(ve[0].Field(), "[")
	if mapped, ok := fieldErrors[field]; ok {
		return mapped
	}
	return domain.NewError(domain.CodeInvalidInput, "invalid "+field)
}
