package telephony

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/tidewater-labs/callbridge/bridge/contract"
)

type Config struct {
	AccountSID        string `envconfig:"ACCOUNT_SID" required:"true"`
	AuthToken         string `envconfig:"AUTH_TOKEN" required:"true"`
	ExpertNumber      string `envconfig:"EXPERT_NUMBER" required:"true"`
	StatusCallbackURL string `envconfig:"STATUS_CALLBACK_URL"`
}

// Directory drives the provider's REST API for the two live-call
// operations the bridge needs: resolving the caller and handing the call
// off to a human expert.
type Directory struct {
	cfg    Config
	client *twilio.RestClient
}

func NewDirectory(cfg Config) *Directory {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Directory{cfg: cfg, client: client}
}

// CallerNumber looks up the caller's phone number for a live call.
func (d *Directory) CallerNumber(ctx context.Context, callSid string) (string, error) {
	if callSid == "" {
		return "", contract.ErrMissingCallSid
	}
	call, err := d.client.Api.FetchCall(callSid, &twilioapi.FetchCallParams{})
	if err != nil {
		return "", fmt.Errorf("fetch call %s: %w", callSid, err)
	}
	if call.From == nil || *call.From == "" {
		return "", fmt.Errorf("fetch call %s: no caller number", callSid)
	}
	return *call.From, nil
}

// RedirectToExpert replaces the call's instructions with a bridge to the
// fundraising expert. The media stream drops as a side effect, which ends
// the AI session.
func (d *Directory) RedirectToExpert(ctx context.Context, callSid string) error {
	if callSid == "" {
		return contract.ErrMissingCallSid
	}
	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: "Connecting you to our fundraising expert now. Please hold."},
		&twiml.VoiceDial{
			Number:  d.cfg.ExpertNumber,
			Action:  d.cfg.StatusCallbackURL,
			Method:  "POST",
			Timeout: "30",
		},
	})
	if err != nil {
		return fmt.Errorf("build redirect twiml: %w", err)
	}

	params := &twilioapi.UpdateCallParams{}
	params.SetTwiml(doc)
	if _, err := d.client.Api.UpdateCall(callSid, params); err != nil {
		return fmt.Errorf("update call %s: %w", callSid, err)
	}
	return nil
}
