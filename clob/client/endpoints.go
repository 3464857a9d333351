package client

// CLOB REST 端点
const (
	EndpointGetOrderBook      = "/book"
	EndpointGetMarket         = "/markets/{conditionID}"
	EndpointGetLastTradePrice = "/last-trade-price"
	EndpointPostOrder         = "/order"
	EndpointGetOrder          = "/data/order/{orderID}"
	EndpointCancelOrder       = "/order"
	EndpointGetOpenOrders     = "/data/orders"
)
