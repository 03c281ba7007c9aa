package cleanup

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/state"
)

// releaseFunctionTriggers deletes the event-source mappings of each
// inventoried function so queue and stream triggers do not block the engine
// from deleting the function itself.
func releaseFunctionTriggers(ctx context.Context, client FunctionClient, functions []state.Entry, logger zerolog.Logger) Log {
	var log Log
	for _, fn := range functions {
		out, err := client.ListEventSourceMappings(ctx, &lambda.ListEventSourceMappingsInput{
			FunctionName: aws.String(fn.Name),
		})
		if err != nil {
			if isNotFound(err) {
				log = log.Add("function %s already deleted", fn.Name)
				continue
			}
			logger.Warn().Str("function", fn.Name).Err(err).Msg("listing event source mappings failed")
			log = log.Add("function %s: listing triggers failed: %v", fn.Name, err)
			continue
		}

		removed := 0
		for _, mapping := range out.EventSourceMappings {
			_, err := client.DeleteEventSourceMapping(ctx, &lambda.DeleteEventSourceMappingInput{
				UUID: mapping.UUID,
			})
			if err != nil && !isNotFound(err) {
				logger.Warn().Str("function", fn.Name).Str("mapping", aws.ToString(mapping.UUID)).Err(err).Msg("trigger deletion failed")
				log = log.Add("function %s: trigger %s deletion failed: %v", fn.Name, aws.ToString(mapping.UUID), err)
				continue
			}
			removed++
		}
		log = log.Add("function %s: %d trigger(s) released", fn.Name, removed)
	}
	return log
}
