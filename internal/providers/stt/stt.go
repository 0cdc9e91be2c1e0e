// Package stt turns recorded candidate speech into text.
package stt

import (
	"fmt"
	"strings"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// ParseEncoding maps a RecognitionConfig encoding name to its enum value.
// An empty name means LINEAR16, the format browsers send after resampling.
func ParseEncoding(name string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	if name == "" {
		return speechpb.RecognitionConfig_LINEAR16, nil
	}
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("stt: unknown audio encoding %q", name)
	}
	return speechpb.RecognitionConfig_AudioEncoding(v), nil
}

// compressed encodings carry their own sample rate.
func compressed(enc speechpb.RecognitionConfig_AudioEncoding) bool {
	return enc == speechpb.RecognitionConfig_WEBM_OPUS || enc == speechpb.RecognitionConfig_OGG_OPUS
}
