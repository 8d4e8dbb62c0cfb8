// Package dynamo provides shared DynamoDB constants and the transaction
// helper for the single-table notes layout.
package dynamo

const (
	// Primary key attributes.
	AttrPK = "pk"
	AttrSK = "sk"

	// GSI key attributes.
	AttrGSI1PK = "gsi1pk"
	AttrGSI1SK = "gsi1sk"
	AttrGSI2PK = "gsi2pk"
	AttrGSI2SK = "gsi2sk"

	// Index names.
	IndexGSI1 = "gsi1"
	IndexGSI2 = "gsi2"

	// Key prefix shared across entity types.
	PrefixUser = "USER#"
)

// Sort key sentinels. DynamoDB orders string keys by UTF-8 bytes, so MinID
// sorts before and MaxID after every real ID. Appended to a composite sort
// key bound they keep the trailing ID component from constraining a range
// comparison on the leading deadline component.
const (
	MinID = "\u0000"
	MaxID = "\uffff"
)
