package webhook

import "time"

// DeliveryResult はHTTPステータスコードに基づく送信結果の分類。
type DeliveryResult int

const (
	// DeliveryResultOK は送信成功（2xx）。
	DeliveryResultOK DeliveryResult = iota
	// DeliveryResultRetry は再送が必要なステータス（408/429/5xx）。
	DeliveryResultRetry
	// DeliveryResultPermanent は再送しても成功しないステータス（上記以外の4xxなど）。
	DeliveryResultPermanent
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 1 * time.Second
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 30 * time.Second
)

// ClassifyHTTPStatus はHTTPステータスコードを送信結果に分類する。
func ClassifyHTTPStatus(statusCode int) DeliveryResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return DeliveryResultOK
	case statusCode == 408 || statusCode == 429:
		return DeliveryResultRetry
	case statusCode >= 500:
		return DeliveryResultRetry
	default:
		return DeliveryResultPermanent
	}
}

// CalculateBackoff は失敗回数に基づいて次の再送までの遅延を計算する。
// 初回1秒、2倍ずつ増加、最大30秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
