package api

// quoteResponse from GET /stock/api/getStockInfo.jsp
type quoteResponse struct {
	MsgArray  []quoteItem `json:"msgArray"`
	RtCode    string      `json:"rtcode"`
	RtMessage string      `json:"rtmessage"`
}

// quoteItem is one entry of msgArray. All numeric fields arrive as strings;
// "-" means no value.
type quoteItem struct {
	Code     string `json:"c"`
	Name     string `json:"n"`
	FullName string `json:"nf"`
	Exchange string `json:"ex"` // "tse" or "otc"

	Date    string `json:"d"` // YYYYMMDD
	Time    string `json:"t"` // HH:MM:SS
	AltTime string `json:"%"` // Some boards report time here instead
	TLong   string `json:"tlong"`

	Last      string `json:"z"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	PrevClose string `json:"y"`
	LimitUp   string `json:"u"`
	LimitDown string `json:"w"`
	Volume    string `json:"v"`

	// Five-level depth as "_"-separated lists with a trailing "_".
	// Pointers distinguish an absent field from an empty book side.
	AskPrices *string `json:"a"`
	AskSizes  *string `json:"f"`
	BidPrices *string `json:"b"`
	BidSizes  *string `json:"g"`
}
