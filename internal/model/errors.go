// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, onboarding, tutor, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeEmailAlreadyRegistered  = "EMAIL_ALREADY_REGISTERED"
	ErrCodeInvalidSignup           = "INVALID_SIGNUP"
	ErrCodeInvalidSessionID        = "INVALID_SESSION_ID"
	ErrCodeUnknownQuestionnaire    = "UNKNOWN_QUESTIONNAIRE"
	ErrCodeInvalidAnswer           = "INVALID_ANSWER"
	ErrCodeQuestionnaireIncomplete = "QUESTIONNAIRE_INCOMPLETE"
	ErrCodePromotionInProgress     = "PROMOTION_IN_PROGRESS"
	ErrCodeAttemptClosed           = "ATTEMPT_CLOSED"
	ErrCodePromotionFailed         = "PROMOTION_FAILED"
	ErrCodeTutorNotFound           = "TUTOR_NOT_FOUND"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInvalidProfile          = "INVALID_PROFILE"
	ErrCodePictureUnavailable      = "PICTURE_UNAVAILABLE"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeCSRFTokenInvalid        = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal                = "INTERNAL_ERROR"
	ErrCodeOAuthDisabled           = "OAUTH_DISABLED"
)

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Não foi possível interpretar o pedido.",
		Category: "validation",
		Action:   "Envie o pedido em formato JSON válido.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "É necessário iniciar sessão.",
		Category: "auth",
		Action:   "Inicie sessão e tente novamente.",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Email ou palavra-passe incorretos.",
		Category: "auth",
		Action:   "Verifique os seus dados e tente novamente.",
	}
}

// NewEmailAlreadyRegisteredError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyRegistered,
		Message:  "Já existe uma conta com este email.",
		Category: "auth",
		Action:   "Inicie sessão com a conta existente.",
	}
}

// NewInvalidSignupError はサインアップ入力不正エラーを生成する。
func NewInvalidSignupError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSignup,
		Message:  fmt.Sprintf("Dados de registo inválidos: %s", reason),
		Category: "validation",
		Action:   "Indique um email válido e uma palavra-passe com pelo menos 6 caracteres.",
	}
}

// NewInvalidSessionIDError は回答セッションID不正エラーを生成する。
func NewInvalidSessionIDError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSessionID,
		Message:  "Identificador de sessão do questionário inválido.",
		Category: "validation",
		Action:   "Recomece o questionário.",
	}
}

// NewUnknownQuestionnaireError は存在しないアンケート種別エラーを生成する。
func NewUnknownQuestionnaireError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownQuestionnaire,
		Message:  fmt.Sprintf("Questionário desconhecido: %s", kind),
		Category: "validation",
		Action:   "Escolha o questionário de explicador ou de estudante.",
	}
}

// NewInvalidAnswerError は回答不正エラーを生成する。
func NewInvalidAnswerError(questionID int, answer string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAnswer,
		Message:  fmt.Sprintf("Resposta inválida para a pergunta %d: %q", questionID, answer),
		Category: "validation",
		Action:   "Escolha uma das opções apresentadas.",
	}
}

// NewQuestionnaireIncompleteError は未回答の質問が残っている場合のエラーを生成する。
func NewQuestionnaireIncompleteError() *APIError {
	return &APIError{
		Code:     ErrCodeQuestionnaireIncomplete,
		Message:  "O questionário ainda não foi concluído.",
		Category: "onboarding",
		Action:   "Responda a todas as perguntas antes de criar a conta.",
	}
}

// NewPromotionInProgressError は昇格処理が実行中の場合のエラーを生成する。
func NewPromotionInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodePromotionInProgress,
		Message:  "O registo já está a ser processado.",
		Category: "onboarding",
		Action:   "Aguarde a conclusão do pedido anterior.",
	}
}

// NewAttemptClosedError は完了済みまたは失敗済みの回答セッションに対するエラーを生成する。
func NewAttemptClosedError() *APIError {
	return &APIError{
		Code:     ErrCodeAttemptClosed,
		Message:  "Esta sessão do questionário já foi encerrada.",
		Category: "onboarding",
		Action:   "Recomece o questionário.",
	}
}

// NewPromotionFailedError はプロフィール作成失敗エラーを生成する。
// 原因（一時データ未検出・登録拒否など）はユーザーには区別して返さない。
func NewPromotionFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePromotionFailed,
		Message:  "Não foi possível criar o seu perfil de explicador.",
		Category: "system",
		Action:   "Recomece o questionário e tente novamente.",
	}
}

// NewTutorNotFoundError は講師未検出エラーを生成する。
func NewTutorNotFoundError(tutorID string) *APIError {
	return &APIError{
		Code:     ErrCodeTutorNotFound,
		Message:  fmt.Sprintf("Explicador não encontrado: %s", tutorID),
		Category: "tutor",
		Action:   "Volte ao marketplace e escolha outro explicador.",
	}
}

// NewForbiddenError は所有者以外による操作エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Só o dono do perfil pode alterá-lo.",
		Category: "auth",
		Action:   "Inicie sessão com a conta do explicador.",
	}
}

// NewInvalidProfileError はプロフィール入力不正エラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("Dados de perfil inválidos: %s", reason),
		Category: "validation",
		Action:   "Corrija os campos indicados e guarde novamente.",
	}
}

// NewPictureUnavailableError はプロフィール画像取得失敗エラーを生成する。
func NewPictureUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodePictureUnavailable,
		Message:  "Não foi possível obter a fotografia de perfil.",
		Category: "tutor",
		Action:   "Indique um URL público (https) de uma imagem com menos de 2MB.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Utilizador não encontrado.",
		Category: "auth",
		Action:   "Inicie sessão novamente.",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "O pedido não pôde ser validado.",
		Category: "auth",
		Action:   "Recarregue a página e tente novamente.",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Demasiados pedidos.",
		Category: "system",
		Action:   "Aguarde alguns instantes e tente novamente.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Ocorreu um erro interno.",
		Category: "system",
		Action:   "Aguarde alguns instantes e tente novamente.",
	}
}

// NewOAuthDisabledError はGoogleログインが設定されていない場合のエラーを生成する。
func NewOAuthDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthDisabled,
		Message:  "O início de sessão com Google não está disponível.",
		Category: "auth",
		Action:   "Inicie sessão com email e palavra-passe.",
	}
}
