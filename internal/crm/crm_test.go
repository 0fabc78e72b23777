package crm

import (
	"context"
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
	c := NewClient(&conf.CRMSettings{
		Enabled:     true,
		APIURL:      "https://crm.example.com/api/v2",
		BearerToken: "test-token",
	})
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestUpdateDealStage_Success(t *testing.T) {
	c := testClient(t)

	var gotAuth, gotBody string
	httpmock.RegisterResponder(http.MethodPut, "https://crm.example.com/api/v2/deals/D-42/stage",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			buf := make([]byte, 256)
			n, _ := req.Body.Read(buf)
			gotBody = string(buf[:n])
			return httpmock.NewStringResponse(http.StatusOK, `{}`), nil
		})

	err := c.UpdateDealStage(context.Background(), "D-42", StageL1Graded)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.JSONEq(t, `{"dealId":"D-42","stage":"L1_GRADED"}`, gotBody)
}

func TestUpdateDealStage_ServerError(t *testing.T) {
	c := testClient(t)

	httpmock.RegisterResponder(http.MethodPut, "https://crm.example.com/api/v2/deals/D-42/stage",
		httpmock.NewStringResponder(http.StatusBadGateway, `{"error":"upstream"}`))

	err := c.UpdateDealStage(context.Background(), "D-42", StageGraded)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))
}

func TestUpdateDealStage_EmptyDealID(t *testing.T) {
	c := testClient(t)

	err := c.UpdateDealStage(context.Background(), "", StageGraded)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestUpdateDealStage_Disabled(t *testing.T) {
	c := NewClient(&conf.CRMSettings{Enabled: false})
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)

	require.NoError(t, c.UpdateDealStage(context.Background(), "D-42", StageGraded))
	assert.Zero(t, httpmock.GetTotalCallCount())
}
