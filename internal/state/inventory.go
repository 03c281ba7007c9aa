package state

// GatewayVersion distinguishes REST (v1) from HTTP (v2) API gateways, which
// are managed through different SDK clients.
type GatewayVersion int

const (
	GatewayV1 GatewayVersion = iota + 1
	GatewayV2
)

// Entry is one inventoried resource: its identifying name (bucket name,
// function name, API id, ...) and its ARN when recorded.
type Entry struct {
	Name string
	ARN  string
}

// GatewayEntry is an API gateway entry tagged with its client version.
type GatewayEntry struct {
	Entry
	Version GatewayVersion
}

// Inventory is the typed view of a state document's managed resources,
// grouped by resource family in document order.
type Inventory struct {
	Buckets   []Entry
	Functions []Entry
	Gateways  []GatewayEntry
	Tables    []Entry
	Roles     []Entry
}

// Extract derives an inventory from a state document. It never fails: a nil
// document, a missing resources list, or instances without the identifying
// attribute simply contribute nothing (state may reference partially-created
// resources).
func Extract(doc *Document) Inventory {
	var inv Inventory
	if doc == nil {
		return inv
	}
	for _, res := range doc.Resources {
		for _, inst := range res.Instances {
			switch res.Type {
			case "aws_s3_bucket":
				if e, ok := entryFrom(inst, "bucket"); ok {
					inv.Buckets = append(inv.Buckets, e)
				}
			case "aws_lambda_function":
				if e, ok := entryFrom(inst, "function_name"); ok {
					inv.Functions = append(inv.Functions, e)
				}
			case "aws_api_gateway_rest_api":
				if e, ok := entryFrom(inst, "id"); ok {
					inv.Gateways = append(inv.Gateways, GatewayEntry{Entry: e, Version: GatewayV1})
				}
			case "aws_apigatewayv2_api":
				if e, ok := entryFrom(inst, "id"); ok {
					inv.Gateways = append(inv.Gateways, GatewayEntry{Entry: e, Version: GatewayV2})
				}
			case "aws_dynamodb_table":
				if e, ok := entryFrom(inst, "name"); ok {
					inv.Tables = append(inv.Tables, e)
				}
			case "aws_iam_role":
				if e, ok := entryFrom(inst, "name"); ok {
					inv.Roles = append(inv.Roles, e)
				}
			}
		}
	}
	return inv
}

func entryFrom(inst Instance, nameAttr string) (Entry, bool) {
	name, ok := inst.Attributes[nameAttr].(string)
	if !ok || name == "" {
		return Entry{}, false
	}
	arn, _ := inst.Attributes["arn"].(string)
	return Entry{Name: name, ARN: arn}, true
}
