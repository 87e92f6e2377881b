// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lib/pq"

	"github.com/hitoshi/cropmap/internal/middleware"
	"github.com/hitoshi/cropmap/internal/model"
)

// successEnvelope は成功レスポンスの統一フォーマット。
type successEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// paginationResponse は一覧レスポンスのページング情報。
type paginationResponse struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// newPagination はページング情報を計算する。totalPagesは切り上げ。
func newPagination(total, page, limit int) paginationResponse {
	totalPages := (total + limit - 1) / limit
	return paginationResponse{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// writeData は成功レスポンスをJSONで書き込む。
func writeData(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data})
}

// writeMessage はデータなしの成功レスポンスをJSONで書き込む。
func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successEnvelope{Success: true, Message: message})
}

// writeMessageData はメッセージ付きの成功レスポンスをJSONで書き込む。
func writeMessageData(w http.ResponseWriter, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successEnvelope{Success: true, Message: message, Data: data})
}

// writeBadRequestBody はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeBadRequestBody(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// ラップされて漏れてきたデータベース制約違反もAPIエラーに変換する
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if apiErr, status := mapPQError(pqErr); apiErr != nil {
			middleware.WriteErrorResponse(w, status, apiErr)
			return
		}
	}

	// それ以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeConflict, model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeBadRequest, model.ErrCodeInvalidRing,
		model.ErrCodeNoFields, model.ErrCodeSelfDelete:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// mapPQError はPostgreSQLのエラーコードをAPIエラーに変換する。
// 変換できないコードは(nil, 0)を返す。
func mapPQError(pqErr *pq.Error) (*model.APIError, int) {
	switch pqErr.Code {
	case "23505": // unique_violation
		return &model.APIError{
			Code:     model.ErrCodeConflict,
			Message:  "重複するデータがすでに存在します。",
			Category: "resource",
			Action:   "既存のデータを確認してください。",
		}, http.StatusConflict
	case "23503": // foreign_key_violation
		return model.NewBadRequestError("参照先のデータが存在しません。"), http.StatusBadRequest
	case "22P02": // invalid_text_representation（不正なUUIDなど）
		return model.NewBadRequestError("IDの形式が正しくありません。"), http.StatusBadRequest
	default:
		return nil, 0
	}
}

// requireIdentity はコンテキストから認証済みIdentityを取り出す。
// 取得できない場合は401を書き込みfalseを返す。
func requireIdentity(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return middleware.Identity{}, false
	}
	return identity, true
}
