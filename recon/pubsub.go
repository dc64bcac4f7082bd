package recon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"bitbucket.org/insurezeal/brokerage_backend/config"
	"bitbucket.org/insurezeal/brokerage_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

// ReconRunPayload describes one asynchronous reconciliation run. The extract
// itself stays in GCS; only its object key travels through Pub/Sub.
type ReconRunPayload struct {
	InsurerName   string          `json:"insurer_name"`
	OperatorId    string          `json:"operator_id"`
	ObjectKey     string          `json:"object_key"`
	Filename      string          `json:"filename"`
	Quarters      []QuarterTarget `json:"quarters,omitempty"`
	CorrelationId string          `json:"correlation_id"`
}

// PubSubPushEnvelope is the push-subscription wrapper Google sends.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func reconTopicName() string {
	if v := strings.TrimSpace(os.Getenv("RECON_TOPIC")); v != "" {
		return v
	}
	return "recon-uploads"
}

var ensureTopicOnce sync.Once

// PublishRun enqueues one async reconciliation run. Outside production the
// topic is created on first use; production topics are provisioned by infra.
func PublishRun(ctx context.Context, payload ReconRunPayload) error {
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		ensureTopicOnce.Do(func() {
			if _, topicErr := config.CreateTopicIfNotExists(client, reconTopicName()); topicErr != nil {
				config.LogError(config.GetLogger(), "pubsub.go", "PublishRun", "creating topic", reconTopicName(), topicErr)
			}
		})
	}
	data, _ := json.Marshal(payload)
	res := client.Topic(reconTopicName()).Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler processes one pushed run. Malformed envelopes are acked
// and dropped (204) to avoid infinite redelivery; run failures are also acked
// because the run itself records its errors in the report row, and a
// redelivered run would double-apply ledger writes.
func (r *Reconciler) PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := r.logger

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "pubsub.go", "PubSubPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PubSubPushEnvelope
		if err := utils.UnmarshalFromJSON(body, &envelope); err != nil {
			config.LogError(logger, "pubsub.go", "PubSubPushHandler", "unmarshal envelope", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		var payload ReconRunPayload
		if err := utils.UnmarshalFromJSON(envelope.Message.Data, &payload); err != nil {
			config.LogError(logger, "pubsub.go", "PubSubPushHandler", "unmarshal payload", string(envelope.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		if payload.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
		}

		if err := r.RunFromArchive(ctx, payload); err != nil {
			config.LogError(logger, "pubsub.go", "PubSubPushHandler", "run", payload, err)
		}
		c.Status(http.StatusNoContent)
	}
}

// RunFromArchive loads the archived extract and executes the run described by
// the payload.
func (r *Reconciler) RunFromArchive(ctx context.Context, payload ReconRunPayload) error {
	data, err := utils.ReadExtractFromGCS(ctx, payload.ObjectKey)
	if err != nil {
		return err
	}
	csvText, err := ParseExtract(payload.Filename, data)
	if err != nil {
		return err
	}
	if len(payload.Quarters) > 0 {
		_, err = r.ProcessQuarters(ctx, csvText, payload.InsurerName, payload.OperatorId, payload.Quarters)
		return err
	}
	_, err = r.Process(ctx, csvText, payload.InsurerName, payload.OperatorId)
	return err
}
