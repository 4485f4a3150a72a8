package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 各模块答题时长（秒）
const (
	RWModuleSeconds   = 32 * 60
	MathModuleSeconds = 35 * 60
)

// 题目配图上传限制
const (
	MimeImage         = "image/"
	MaxAssetSizeBytes = 5 << 20
)

var AllowedAssetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}
