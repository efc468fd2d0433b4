package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// BetID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type  string `json:"type"`  // subscribe | unsubscribe | ping
	BetID string `json:"betId"` // requerido em subscribe/unsubscribe
}

// BetUpdate representa uma atualização ao vivo enviada para clientes WebSocket
type BetUpdate struct {
	BetID   string      `json:"betId"`
	Payload interface{} `json:"payload"`
}
