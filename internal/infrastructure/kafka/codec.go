package kafka

import (
	"fmt"
	"time"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeIndexPublished сериализует событие в protobuf Struct.
func EncodeIndexPublished(event *usecase.IndexPublishedEvent) ([]byte, error) {
	files := make([]any, 0, len(event.Files))
	for _, f := range event.Files {
		files = append(files, f)
	}

	payload, err := structpb.NewStruct(map[string]any{
		"event_type":       string(usecase.IndexPublished),
		"build_id":         event.BuildID,
		"kind":             event.Kind,
		"size":             event.Size,
		"dimension":        event.Dimension,
		"model_version":    event.ModelVersion,
		"artifacts_prefix": event.ArtifactsPrefix,
		"files":            files,
		"created_at":       event.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}

	return proto.Marshal(payload)
}

// DecodeIndexPublished разбирает событие; сообщения другого типа — ошибка.
func DecodeIndexPublished(data []byte) (*usecase.IndexPublishedEvent, error) {
	var payload structpb.Struct
	if err := proto.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	fields := payload.GetFields()
	if t := fields["event_type"].GetStringValue(); t != string(usecase.IndexPublished) {
		return nil, fmt.Errorf("unexpected event type %q", t)
	}

	event := &usecase.IndexPublishedEvent{
		BuildID:         fields["build_id"].GetStringValue(),
		Kind:            fields["kind"].GetStringValue(),
		Size:            int(fields["size"].GetNumberValue()),
		Dimension:       int(fields["dimension"].GetNumberValue()),
		ModelVersion:    fields["model_version"].GetStringValue(),
		ArtifactsPrefix: fields["artifacts_prefix"].GetStringValue(),
	}
	if event.BuildID == "" || event.ArtifactsPrefix == "" {
		return nil, fmt.Errorf("event without build id or artifacts prefix")
	}

	for _, v := range fields["files"].GetListValue().GetValues() {
		event.Files = append(event.Files, v.GetStringValue())
	}

	if ts := fields["created_at"].GetStringValue(); ts != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("created_at: %w", err)
		}
		event.CreatedAt = createdAt
	}

	return event, nil
}
