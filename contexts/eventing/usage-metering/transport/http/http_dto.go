package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RecordUsageRequest struct {
	TenantID   string `json:"tenant_id"`
	Meter      string `json:"meter"`
	Quantity   int64  `json:"quantity"`
	RecordedAt string `json:"recorded_at"`
}

type RecordUsageResponse struct {
	ID string `json:"id"`
}

type UsageRollupDTO struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	Meter         string `json:"meter"`
	WindowStart   string `json:"window_start"`
	WindowEnd     string `json:"window_end"`
	TotalQuantity int64  `json:"total_quantity"`
	RecordCount   int64  `json:"record_count"`
}

type ListRollupsResponse struct {
	Items []UsageRollupDTO `json:"items"`
}
