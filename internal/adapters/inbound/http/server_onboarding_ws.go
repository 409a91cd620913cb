package http

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/chidihq/chidi-backend/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsInbound is a client frame on the onboarding channel. The type
// discriminates which fields are present.
type wsInbound struct {
	Type        string            `json:"type"`
	Content     string            `json:"content,omitempty"`
	OptionID    string            `json:"optionId,omitempty"`
	OptionText  string            `json:"optionText,omitempty"`
	OptionValue string            `json:"optionValue,omitempty"`
	FormData    map[string]string `json:"formData,omitempty"`
	ActionType  string            `json:"actionType,omitempty"`
}

type wsMessageFrame struct {
	Type    string      `json:"type"`
	Message restTurn    `json:"message"`
	State   restSession `json:"state"`
}

type wsStateFrame struct {
	Type  string      `json:"type"`
	State restSession `json:"state"`
}

type wsTypingFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"isTyping"`
}

type wsActionFrame struct {
	Type       string `json:"type"`
	ActionType string `json:"actionType"`
	Status     string `json:"status"`
}

type wsErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OnboardingSocket runs the onboarding conversation for one user over a
// WebSocket connection.
func (api ChidiServer) OnboardingSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		api.Logger.Printf("OnboardingSocket: upgrade failed: %v", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	ctx := r.Context()

	session, welcomed, err := api.OnboardingUseCase.Connect(ctx, userID)
	if err != nil {
		api.Logger.Printf("OnboardingSocket: connect failed: %v", err)
		api.writeFrame(conn, wsErrorFrame{Type: "error", Message: toError(err).Error.Message})
		return
	}
	if welcomed {
		api.writeFrame(conn, wsMessageFrame{
			Type:    "message",
			Message: toRestTurn(session.Transcript[len(session.Transcript)-1]),
			State:   toRestSession(session),
		})
	} else {
		api.writeFrame(conn, wsStateFrame{Type: "onboarding_state", State: toRestSession(session)})
	}

	for {
		var frame wsInbound
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				api.Logger.Printf("OnboardingSocket: read failed for user %s: %v", userID, err)
			}
			return
		}

		switch frame.Type {
		case "user_message":
			api.writeFrame(conn, wsTypingFrame{Type: "typing_indicator", IsTyping: true})
			session, turn, err := api.OnboardingUseCase.HandleText(ctx, userID, frame.Content)
			api.writeFrame(conn, wsTypingFrame{Type: "typing_indicator", IsTyping: false})
			if err != nil {
				api.writeFrame(conn, wsErrorFrame{Type: "error", Message: toError(err).Error.Message})
				continue
			}
			api.writeFrame(conn, wsMessageFrame{
				Type:    "message",
				Message: toRestTurn(turn),
				State:   toRestSession(session),
			})

		case "option_selection":
			session, err := api.OnboardingUseCase.HandleOptionSelection(ctx, userID, domain.MessageOption{
				ID:    frame.OptionID,
				Text:  frame.OptionText,
				Value: frame.OptionValue,
			})
			if err != nil {
				api.writeFrame(conn, wsErrorFrame{Type: "error", Message: toError(err).Error.Message})
				continue
			}
			api.writeFrame(conn, wsStateFrame{Type: "onboarding_state", State: toRestSession(session)})

		case "form_submission":
			session, turn, err := api.OnboardingUseCase.HandleFormSubmission(ctx, userID, frame.FormData)
			if err != nil {
				api.writeFrame(conn, wsErrorFrame{Type: "error", Message: toError(err).Error.Message})
				continue
			}
			api.writeFrame(conn, wsMessageFrame{
				Type:    "message",
				Message: toRestTurn(turn),
				State:   toRestSession(session),
			})

		case "action_trigger":
			status, err := api.OnboardingUseCase.HandleActionTrigger(frame.ActionType)
			if err != nil {
				api.writeFrame(conn, wsErrorFrame{Type: "error", Message: toError(err).Error.Message})
				continue
			}
			api.writeFrame(conn, wsActionFrame{Type: "action_response", ActionType: frame.ActionType, Status: status})

		default:
			api.writeFrame(conn, wsErrorFrame{Type: "error", Message: "unknown message type: " + frame.Type})
		}
	}
}

func (api ChidiServer) writeFrame(conn *websocket.Conn, frame any) {
	if err := conn.WriteJSON(frame); err != nil {
		api.Logger.Printf("OnboardingSocket: write failed: %v", err)
	}
}
