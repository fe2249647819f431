package esplora

// blockTip pairs the results of GET /blocks/tip/height and
// GET /blocks/tip/hash (esplora has no single endpoint returning both).
// Both endpoints answer in plain text, and Client.Tip parses them directly
// without going through this type.
type blockTip struct {
	Height uint32
	Hash   string
}

// txStatus mirrors esplora's embedded "status" object on a transaction.
type txStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint32 `json:"block_height"`
	BlockHash   string `json:"block_hash"`
}

// historyEntry mirrors one element of GET /scripthash/:hash/txs.
type historyEntry struct {
	Txid   string   `json:"txid"`
	Status txStatus `json:"status"`
}

// headerResponse mirrors GET /block/:hash (only the fields we need).
type headerResponse struct {
	ID     string `json:"id"`
	Height uint32 `json:"height"`
}
