package types

// OrderBookSummary 订单簿摘要
type OrderBookSummary struct {
	Market       string         `json:"market"`
	AssetID      string         `json:"asset_id"`
	Timestamp    string         `json:"timestamp"`
	Bids         []OrderSummary `json:"bids"`
	Asks         []OrderSummary `json:"asks"`
	MinOrderSize string         `json:"min_order_size"`
	TickSize     string         `json:"tick_size"`
	NegRisk      bool           `json:"neg_risk"`
	Hash         string         `json:"hash"`
}

// OrderSummary 订单摘要（价格/数量均为字符串，与上游一致）
type OrderSummary struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MarketPrice 市场最新成交价（无订单簿市场的备选报价源）
type MarketPrice struct {
	Timestamp int64   `json:"t"` // 时间戳
	Price     float64 `json:"p"` // 价格
}

// MarketToken 市场 outcome token
type MarketToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Price   string `json:"price"`
}

// Market 市场元数据（通过 condition 引用查询时使用）
type Market struct {
	ConditionID  string        `json:"condition_id"`
	Question     string        `json:"question"`
	TickSize     string        `json:"minimum_tick_size"`
	MinOrderSize string        `json:"minimum_order_size"`
	NegRisk      bool          `json:"neg_risk"`
	Active       bool          `json:"active"`
	Closed       bool          `json:"closed"`
	Tokens       []MarketToken `json:"tokens"`
}
