package cleanup

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/state"
)

// probeGateways performs read-only existence checks on inventoried API
// gateways, choosing the versioned client per entry. Gateways are deleted by
// the engine itself; this step only records what teardown will encounter.
func probeGateways(ctx context.Context, v1 GatewayV1Client, v2 GatewayV2Client, gateways []state.GatewayEntry, logger zerolog.Logger) Log {
	var log Log
	for _, gw := range gateways {
		var err error
		switch gw.Version {
		case state.GatewayV2:
			_, err = v2.GetApi(ctx, &apigatewayv2.GetApiInput{ApiId: aws.String(gw.Name)})
		default:
			_, err = v1.GetRestApi(ctx, &apigateway.GetRestApiInput{RestApiId: aws.String(gw.Name)})
		}
		switch {
		case err == nil:
			log = log.Add("gateway %s present; engine will remove it", gw.Name)
		case isNotFound(err):
			log = log.Add("gateway %s already deleted", gw.Name)
		default:
			logger.Warn().Str("gateway", gw.Name).Err(err).Msg("gateway probe failed")
			log = log.Add("gateway %s: probe failed: %v", gw.Name, err)
		}
	}
	return log
}
