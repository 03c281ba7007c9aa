package terraform

import "strings"

// FailureClass partitions destroy failures for the retry controller.
type FailureClass int

const (
	// FailureRetryable covers failures worth one refresh-and-retry cycle.
	FailureRetryable FailureClass = iota
	// FailureBucketNotEmpty marks a bucket that still holds content; a retry
	// without further cleanup would reproduce the same failure.
	FailureBucketNotEmpty
)

// bucketNotEmptyMarkers are the stderr fragments AWS and terraform emit for
// the condition. String matching is fragile; keeping the rule in one place
// lets it be replaced by structured exit codes without touching the retry
// state machine.
var bucketNotEmptyMarkers = []string{
	"BucketNotEmpty",
	"bucket is not empty",
}

// ClassifyDestroyFailure inspects captured stderr from a failed destroy.
func ClassifyDestroyFailure(stderr string) FailureClass {
	for _, marker := range bucketNotEmptyMarkers {
		if strings.Contains(stderr, marker) {
			return FailureBucketNotEmpty
		}
	}
	return FailureRetryable
}
