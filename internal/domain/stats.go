package domain

// DashboardStats - агрегат главной страницы. Хранится в кэше под ключом "dashboardStats".
type DashboardStats struct {
	CurrentPrice       float64 `json:"currentPrice"`
	PriceChange        float64 `json:"priceChange"`
	TotalInventory     int64   `json:"totalInventory"`
	ActiveSuppliers    int64   `json:"activeSuppliers"`
	RecentTransactions int64   `json:"recentTransactions"`
	LastUpdated        string  `json:"lastUpdated"`
}
