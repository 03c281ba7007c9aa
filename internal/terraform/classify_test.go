package terraform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyDestroyFailure(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   FailureClass
	}{
		{
			name:   "aws error code",
			stderr: "Error: deleting S3 Bucket (b1): BucketNotEmpty: The bucket you tried to delete is not empty",
			want:   FailureBucketNotEmpty,
		},
		{
			name:   "human message",
			stderr: "Error: the bucket is not empty",
			want:   FailureBucketNotEmpty,
		},
		{
			name:   "unrelated failure",
			stderr: "Error: error waiting for Lambda Function deletion",
			want:   FailureRetryable,
		},
		{
			name:   "empty stderr",
			stderr: "",
			want:   FailureRetryable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyDestroyFailure(tt.stderr))
		})
	}
}
