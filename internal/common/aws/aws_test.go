// internal/common/aws/aws_test.go
package aws

import (
	"context"
	"errors"
	"strings"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNSAPI struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSAPI) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("m-1")}, nil
}

type fakeSESAPI struct {
	input *ses.SendEmailInput
}

func (f *fakeSESAPI) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{MessageId: awssdk.String("e-1")}, nil
}

func TestSNSClient_PublishAlert(t *testing.T) {
	api := &fakeSNSAPI{}
	c := NewSNSClientWithAPI(api)

	id, err := c.PublishAlert(context.Background(), "arn:topic", strings.Repeat("s", 150), "body",
		map[string]string{"ticketId": "t-1", "empty": ""})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	assert.Len(t, awssdk.ToString(api.input.Subject), 100)
	assert.Equal(t, "arn:topic", awssdk.ToString(api.input.TopicArn))
	assert.Contains(t, api.input.MessageAttributes, "ticketId")
	assert.NotContains(t, api.input.MessageAttributes, "empty")

	api.err = errors.New("denied")
	_, err = c.PublishAlert(context.Background(), "arn:topic", "s", "b", nil)
	assert.Error(t, err)
}

func TestSESClient_SendText(t *testing.T) {
	api := &fakeSESAPI{}
	c := NewSESClientWithAPI(api)

	_, err := c.SendText(context.Background(), "from@example.com", nil, "s", "b")
	assert.Error(t, err)

	id, err := c.SendText(context.Background(), "from@example.com", []string{"to@example.com"}, "Subject", "Body")
	require.NoError(t, err)
	assert.Equal(t, "e-1", id)
	assert.Equal(t, []string{"to@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "Body", awssdk.ToString(api.input.Message.Body.Text.Data))
}
