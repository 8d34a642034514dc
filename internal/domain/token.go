package domain

// TokenType tags a token address with its Circles registration event.
// Values match the type strings reported by the Circles index RPC.
type TokenType string

const (
	TokenTypeV1Signup            TokenType = "CrcV1_Signup"
	TokenTypeV2Human             TokenType = "CrcV2_RegisterHuman"
	TokenTypeV2Group             TokenType = "CrcV2_RegisterGroup"
	TokenTypeWrapperInflationary TokenType = "CrcV2_ERC20WrapperDeployed_Inflationary"
	TokenTypeWrapperDemurraged   TokenType = "CrcV2_ERC20WrapperDeployed_Demurraged"
)

// WrapperKind distinguishes the two ERC20 wrapper flavors.
type WrapperKind string

const (
	WrapperInflationary WrapperKind = "inflationary"
	WrapperDemurraged   WrapperKind = "demurraged"
)

// TokenInfoRow is token metadata from the Circles index.
// Rows are immutable and cached by token address.
type TokenInfoRow struct {
	Token   Address   // token contract address
	Type    TokenType // registration event type
	Owner   Address   // owning avatar
	Version int       // protocol version (1 or 2)
}

// IsWrapped reports whether the token is an ERC20 wrapper.
func (r TokenInfoRow) IsWrapped() bool {
	return r.Type == TokenTypeWrapperInflationary || r.Type == TokenTypeWrapperDemurraged
}

// WrapperKind returns the wrapper flavor, or false for native tokens.
func (r TokenInfoRow) WrapperKind() (WrapperKind, bool) {
	switch r.Type {
	case TokenTypeWrapperInflationary:
		return WrapperInflationary, true
	case TokenTypeWrapperDemurraged:
		return WrapperDemurraged, true
	default:
		return "", false
	}
}

// Avatar is the avatar address backing a wrapped token.
// For native tokens it is simply the token owner.
func (r TokenInfoRow) Avatar() Address {
	return r.Owner
}
