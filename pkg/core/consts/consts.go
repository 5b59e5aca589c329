package consts

type ctxKey string

// RunKey 部署运行 ID 在 context 中的 key
const RunKey ctxKey = "atomic-deploy-run-id"

// EnvPrefix 环境变量覆盖配置时使用的前缀
const EnvPrefix = "ATOMIC_DEPLOY_"
