package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_BucketAndFunction(t *testing.T) {
	doc, err := Parse([]byte(`{
		"resources": [
			{"type": "aws_s3_bucket", "name": "data", "instances": [
				{"attributes": {"bucket": "b1", "arn": "arn:aws:s3:::b1"}}
			]},
			{"type": "aws_lambda_function", "name": "worker", "instances": [
				{"attributes": {"function_name": "f1", "arn": "arn:aws:lambda:us-east-1:1:function:f1"}}
			]}
		]
	}`))
	require.NoError(t, err)

	inv := Extract(doc)
	require.Equal(t, []Entry{{Name: "b1", ARN: "arn:aws:s3:::b1"}}, inv.Buckets)
	require.Equal(t, []Entry{{Name: "f1", ARN: "arn:aws:lambda:us-east-1:1:function:f1"}}, inv.Functions)
	require.Empty(t, inv.Gateways)
	require.Empty(t, inv.Tables)
	require.Empty(t, inv.Roles)
}

func TestExtract_NilDocument(t *testing.T) {
	inv := Extract(nil)
	require.Empty(t, inv.Buckets)
	require.Empty(t, inv.Functions)
}

func TestExtract_MissingResources(t *testing.T) {
	doc, err := Parse([]byte(`{"outputs": {}}`))
	require.NoError(t, err)
	inv := Extract(doc)
	require.Empty(t, inv.Buckets)
}

func TestExtract_SkipsInstancesWithoutIdentifyingAttribute(t *testing.T) {
	// State may reference partially-created resources.
	doc, err := Parse([]byte(`{
		"resources": [
			{"type": "aws_s3_bucket", "instances": [{"attributes": {}}]},
			{"type": "aws_s3_bucket", "instances": [{"attributes": {"bucket": "b2"}}]}
		]
	}`))
	require.NoError(t, err)

	inv := Extract(doc)
	require.Equal(t, []Entry{{Name: "b2"}}, inv.Buckets)
}

func TestExtract_GatewayVersions(t *testing.T) {
	doc, err := Parse([]byte(`{
		"resources": [
			{"type": "aws_api_gateway_rest_api", "instances": [{"attributes": {"id": "rest1"}}]},
			{"type": "aws_apigatewayv2_api", "instances": [{"attributes": {"id": "http1"}}]}
		]
	}`))
	require.NoError(t, err)

	inv := Extract(doc)
	require.Len(t, inv.Gateways, 2)
	require.Equal(t, GatewayV1, inv.Gateways[0].Version)
	require.Equal(t, "rest1", inv.Gateways[0].Name)
	require.Equal(t, GatewayV2, inv.Gateways[1].Version)
	require.Equal(t, "http1", inv.Gateways[1].Name)
}

func TestExtract_TablesAndRoles(t *testing.T) {
	doc, err := Parse([]byte(`{
		"resources": [
			{"type": "aws_dynamodb_table", "instances": [{"attributes": {"name": "t1", "arn": "arn:t1"}}]},
			{"type": "aws_iam_role", "instances": [{"attributes": {"name": "r1", "arn": "arn:r1"}}]},
			{"type": "aws_sqs_queue", "instances": [{"attributes": {"name": "ignored"}}]}
		]
	}`))
	require.NoError(t, err)

	inv := Extract(doc)
	require.Equal(t, []Entry{{Name: "t1", ARN: "arn:t1"}}, inv.Tables)
	require.Equal(t, []Entry{{Name: "r1", ARN: "arn:r1"}}, inv.Roles)
}

func TestOutputValues(t *testing.T) {
	doc, err := Parse([]byte(`{"outputs": {"api_url": {"value": "https://x.example"}, "count": {"value": 3}}}`))
	require.NoError(t, err)

	values := doc.OutputValues()
	require.Equal(t, "https://x.example", values["api_url"])
	require.EqualValues(t, 3, values["count"])
}
