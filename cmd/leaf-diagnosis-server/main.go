// @title Leaf Diagnosis API
// @version 1.0
// @description Tea leaf disease diagnosis pipeline
// @BasePath /
package main

func main() {
	Execute()
}
