package config

// DefaultConfigYAML 内置默认配置
// 外部 config.yaml 或 SPENDSMART_* 环境变量可覆盖任意项
var DefaultConfigYAML = []byte(`server:
  port: ":8080"
  mode: "debug"
  base_url: "http://localhost:8080"

database:
  host: "127.0.0.1"
  port: "3306"
  username: "root"
  password: "root"
  dbname: "spendsmart"
  charset: "utf8mb4"

jwt:
  secret: "spendsmart-dev-secret-change-me"
  expire_hours: 24

email:
  enabled: false
  host: "smtp.gmail.com"
  port: 587
  username: ""
  password: ""
  from: "SpendSmart"

ledger:
  max_retries: 3
  sweep_interval_minutes: 0
`)
