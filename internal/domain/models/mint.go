package models

// MintRequest is the parameter block handed to the external
// chain-broadcast collaborator when a save has NFT monetization enabled.
// This core only constructs the request; signing and broadcasting happen
// outside.
type MintRequest struct {
	DocumentKey       string `json:"document_key"`
	InitialPrice      Money  `json:"initial_price"`
	MaxSupply         int    `json:"max_supply"`
	RoyaltyPercentage int    `json:"royalty_percentage"`
}

// BroadcastResult is returned by the chain collaborator after a mint
// request is accepted.
type BroadcastResult struct {
	TransactionID string `json:"transaction_id"`
}
