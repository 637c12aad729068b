//go:build whispercpp && whisper_gpu

package transcriber

const gpuBuild = true
