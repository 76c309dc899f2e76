package bedrock

import "encoding/json"

// responseStreamEvent is one member of the InvokeModelWithResponseStream
// ResponseStream union, keyed by event or exception type:
//
//	{"chunk": {"bytes": "<base64 Messages API event>"}}
//	{"throttlingException": {"message": "..."}}
type responseStreamEvent map[string]json.RawMessage

// payloadPart is the chunk member of the union.
type payloadPart struct {
	Bytes []byte `json:"bytes"`
}

// exceptionBody is the payload of every modeled Bedrock exception.
type exceptionBody struct {
	Message string `json:"message"`
}
