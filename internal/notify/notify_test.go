package notify

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradehaus/gradeflow/internal/conf"
	"github.com/gradehaus/gradeflow/internal/errors"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(&conf.NotificationSettings{
		Enabled:     true,
		APIURL:      "https://notify.example.com/api",
		BearerToken: "notify-token",
	})
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestSendEmail_Success(t *testing.T) {
	c := testClient(t)

	var gotBody []byte
	httpmock.RegisterResponder(http.MethodPost, "https://notify.example.com/api/emails/send",
		func(req *http.Request) (*http.Response, error) {
			gotBody, _ = io.ReadAll(req.Body)
			assert.Equal(t, "Bearer notify-token", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusAccepted, `{}`), nil
		})

	req := SuborderGradedEmail("fan@example.com", "Alex", "SUB-1001", "INV-1001")
	require.NoError(t, c.SendEmail(context.Background(), req))
	assert.JSONEq(t, `{
		"recipients": ["fan@example.com"],
		"templateName": "suborder-graded",
		"templateData": {"firstName": "Alex", "submissionId": "SUB-1001", "invoiceNo": "INV-1001"}
	}`, string(gotBody))
}

func TestSendEmail_BridgeFailure(t *testing.T) {
	c := testClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://notify.example.com/api/emails/send",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":"smtp down"}`))

	err := c.SendEmail(context.Background(), SuborderGradedEmail("fan@example.com", "Alex", "SUB-1", "INV-1"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))
}

func TestSendEmail_NoRecipients(t *testing.T) {
	c := testClient(t)

	err := c.SendEmail(context.Background(), EmailRequest{TemplateName: TemplateSuborderGraded})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestSendEmail_Disabled(t *testing.T) {
	c := NewClient(&conf.NotificationSettings{Enabled: false})
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)

	require.NoError(t, c.SendEmail(context.Background(), SuborderGradedEmail("fan@example.com", "Alex", "S", "I")))
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestPusherDisabledIsSafe(t *testing.T) {
	p := NewPusher(&conf.PushSettings{Enabled: false})
	assert.NotPanics(t, func() { p.Push("title", "message") })

	var nilPusher *Pusher
	assert.NotPanics(t, func() { nilPusher.Push("title", "message") })
}

func TestPusherBadURLDisables(t *testing.T) {
	p := NewPusher(&conf.PushSettings{Enabled: true, URLs: []string{"not-a-valid-scheme"}})
	assert.False(t, p.enabled)
	assert.NotPanics(t, func() { p.Push("title", "message") })
}
