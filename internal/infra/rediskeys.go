package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "ricemarket"
)

// DashboardStatsKey - ключ агрегата главной страницы (совпадает с ключом localStorage панели).
const DashboardStatsKey = "dashboardStats"

// CacheKey Генератор ключей кэша в Redis
func CacheKey(name string) string {
	return fmt.Sprintf("%s:cache:%s", RedisNamespace, name)
}

// LockKey - ключ распределенной блокировки (прогрев кэша при старте)
func LockKey(name string) string {
	return fmt.Sprintf("%s:lock:%s", RedisNamespace, name)
}
