package kafka

import "time"

const (
	TopicCreateRequest   = "coupon.create.req"
	TopicGetRequest      = "coupon.get.req"
	TopicDisableRequest  = "coupon.disable.req"
	TopicValidateRequest = "coupon.validate.req"
	TopicMarkRequest     = "coupon.mark.req"
	TopicGetRetry        = "coupon.get.retry"
	TopicValidateRetry   = "coupon.validate.retry"
	TopicAudit           = "coupon.audit"
	TopicReplyPrefix     = "coupon.reply."
	TopicRequestSuffix   = ".req"
	TopicRetrySuffix     = ".retry"
	TopicDLQSuffix       = ".dlq"

	RequestTimeout = 3 * time.Second

	RetryHeaderNextAt  = "x-next-at"
	RetryHeaderAttempt = "x-attempt"
	ErrorHeaderKey     = "x-error"
)

// RequestTopics are consumed by the main consumer group.
func RequestTopics() []string {
	return []string{
		TopicCreateRequest,
		TopicGetRequest,
		TopicDisableRequest,
		TopicValidateRequest,
		TopicMarkRequest,
	}
}

// RetryTopics only exist for requests without side effects. Mark requests are
// never retried.
func RetryTopics() []string {
	return []string{
		TopicGetRetry,
		TopicValidateRetry,
	}
}

func ReplyTopic(instanceID string) string {
	return TopicReplyPrefix + instanceID
}
