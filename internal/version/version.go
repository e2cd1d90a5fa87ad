// 包 version：构建信息占位，由编译时 -ldflags 注入
package version

var Commit = "dev"
